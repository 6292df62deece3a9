package signaling

import "github.com/pion/webrtc/v4"

// VoiceEvent is the tagged union of inbound events that drive the voice
// coordinator. Every variant is decoded from the wire into a concrete
// struct so that handling is an exhaustive type switch rather than ad hoc
// field probing.
type VoiceEvent interface {
	voiceEvent()
}

// UserJoinedVoice reports that a user entered the room's voice mesh.
// When UserID is the local user this is the echo of our own join and
// ExistingUsers lists the members we must initiate toward.
type UserJoinedVoice struct {
	UserID        string
	Nickname      string
	ExistingUsers []UserInfo
}

// VoiceRoomUsers lists the users already in voice, sent to a fresh joiner.
type VoiceRoomUsers struct {
	Users []UserInfo
}

// UserLeftVoice reports that a user left the voice mesh.
type UserLeftVoice struct {
	UserID string
}

// OfferReceived carries a remote session description proposal.
type OfferReceived struct {
	FromUserID string
	Offer      webrtc.SessionDescription
}

// AnswerReceived carries a remote session description counter-proposal.
type AnswerReceived struct {
	FromUserID string
	Answer     webrtc.SessionDescription
}

// CandidateReceived carries a remote ICE candidate.
type CandidateReceived struct {
	FromUserID string
	Candidate  webrtc.ICECandidateInit
}

// VoiceError is a relay-reported voice failure; surfaced to the user,
// no state change.
type VoiceError struct {
	Message string
}

func (UserJoinedVoice) voiceEvent()   {}
func (VoiceRoomUsers) voiceEvent()    {}
func (UserLeftVoice) voiceEvent()     {}
func (OfferReceived) voiceEvent()     {}
func (AnswerReceived) voiceEvent()    {}
func (CandidateReceived) voiceEvent() {}
func (VoiceError) voiceEvent()        {}
