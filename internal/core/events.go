package core

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pion/webrtc/v4"

	"github.com/kaizenverse/liveclass/internal/domain"
)

// Kind names a signaling event. The set is closed: anything else is
// rejected at the channel boundary.
type Kind string

const (
	// Client -> server.
	KindJoinSession  Kind = "join-session"
	KindLeaveSession Kind = "leave-session"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
	KindMediaState   Kind = "media-state-changed"
	KindScreenStart  Kind = "screen-share-started"
	KindScreenStop   Kind = "screen-share-stopped"
	KindDocument     Kind = "document-shared"

	// Server -> client.
	KindParticipants      Kind = "session-participants"
	KindParticipantJoined Kind = "participant-joined"
	KindParticipantLeft   Kind = "participant-left"
	KindError             Kind = "error"
	KindKicked            Kind = "kicked"
)

// Envelope is the wire framing: an event name plus its payload.
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinSession asks to enter a session's broadcast group.
type JoinSession struct {
	SessionID domain.SessionID   `json:"sessionId" validate:"required"`
	UserID    domain.UserID      `json:"userId" validate:"required"`
	Role      domain.Role        `json:"role" validate:"omitempty,oneof=teacher student"`
	Media     *domain.MediaPatch `json:"mediaState,omitempty"`
}

// Offer carries an SDP offer to a single named peer. FromID/FromName are
// filled in by the relay, never trusted from the sender.
type Offer struct {
	SessionID domain.SessionID          `json:"sessionId" validate:"required"`
	TargetID  domain.UserID             `json:"targetId" validate:"required"`
	Offer     webrtc.SessionDescription `json:"offer"`
	FromID    domain.UserID             `json:"fromId,omitempty"`
	FromName  string                    `json:"fromName,omitempty"`
}

type Answer struct {
	SessionID domain.SessionID          `json:"sessionId" validate:"required"`
	TargetID  domain.UserID             `json:"targetId" validate:"required"`
	Answer    webrtc.SessionDescription `json:"answer"`
	FromID    domain.UserID             `json:"fromId,omitempty"`
	FromName  string                    `json:"fromName,omitempty"`
}

type ICECandidate struct {
	SessionID domain.SessionID        `json:"sessionId" validate:"required"`
	TargetID  domain.UserID           `json:"targetId" validate:"required"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	FromID    domain.UserID           `json:"fromId,omitempty"`
	FromName  string                  `json:"fromName,omitempty"`
}

// Annotate stamps the relayed payload with the verified sender identity.
func (o *Offer) Annotate(id domain.UserID, name string)        { o.FromID, o.FromName = id, name }
func (a *Answer) Annotate(id domain.UserID, name string)       { a.FromID, a.FromName = id, name }
func (c *ICECandidate) Annotate(id domain.UserID, name string) { c.FromID, c.FromName = id, name }

// RelayPayload is a handshake artifact forwarded point-to-point.
type RelayPayload interface {
	Session() domain.SessionID
	Target() domain.UserID
	Annotate(from domain.UserID, name string)
}

func (o *Offer) Session() domain.SessionID        { return o.SessionID }
func (o *Offer) Target() domain.UserID            { return o.TargetID }
func (a *Answer) Session() domain.SessionID       { return a.SessionID }
func (a *Answer) Target() domain.UserID           { return a.TargetID }
func (c *ICECandidate) Session() domain.SessionID { return c.SessionID }
func (c *ICECandidate) Target() domain.UserID     { return c.TargetID }

// MediaStateChanged is a partial media update from the peer itself.
// Seq, when set, is a per-connection monotonic counter used to discard
// patches that arrive after a newer one was already applied.
type MediaStateChanged struct {
	SessionID domain.SessionID  `json:"sessionId" validate:"required"`
	UserID    domain.UserID     `json:"userId" validate:"required"`
	Media     domain.MediaPatch `json:"mediaState"`
	Seq       int64             `json:"seq,omitempty"`
}

// ScreenShare announces a screen share starting or stopping. The server
// keeps no screen-share state; it only re-broadcasts.
type ScreenShare struct {
	SessionID domain.SessionID `json:"sessionId" validate:"required"`
	UserID    domain.UserID    `json:"userId" validate:"required"`
	UserName  string           `json:"userName,omitempty"`
}

// DocumentShared announces a document made available to the session.
type DocumentShared struct {
	SessionID domain.SessionID `json:"sessionId" validate:"required"`
	UserID    domain.UserID    `json:"userId" validate:"required"`
	FileName  string           `json:"fileName" validate:"required"`
	FileType  string           `json:"fileType,omitempty"`
	FileSize  int64            `json:"fileSize,omitempty"`
	UserName  string           `json:"userName,omitempty"`
}

// Participants is the full roster returned to a joiner.
type Participants struct {
	Participants []domain.Participant `json:"participants"`
}

// ErrorNotice is delivered to the offending peer only.
type ErrorNotice struct {
	Message string `json:"message"`
}

// Kicked precedes a forced transport termination.
type Kicked struct {
	SessionID domain.SessionID `json:"sessionId"`
	Reason    string           `json:"reason"`
}

var validate = validator.New()

// DecodeClientEvent parses one inbound frame into its typed payload.
// Unknown event names and malformed payloads are errors; the caller drops
// the frame and tells the sender.
func DecodeClientEvent(raw []byte) (Kind, any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("bad envelope: %w", err)
	}

	var payload any
	switch env.Event {
	case KindJoinSession:
		payload = &JoinSession{}
	case KindLeaveSession:
		return KindLeaveSession, nil, nil
	case KindOffer:
		payload = &Offer{}
	case KindAnswer:
		payload = &Answer{}
	case KindICECandidate:
		payload = &ICECandidate{}
	case KindMediaState:
		payload = &MediaStateChanged{}
	case KindScreenStart, KindScreenStop:
		payload = &ScreenShare{}
	case KindDocument:
		payload = &DocumentShared{}
	default:
		return env.Event, nil, fmt.Errorf("unknown event %q", env.Event)
	}

	if err := json.Unmarshal(env.Data, payload); err != nil {
		return env.Event, nil, fmt.Errorf("bad %s payload: %w", env.Event, err)
	}
	if err := validate.Struct(payload); err != nil {
		return env.Event, nil, fmt.Errorf("invalid %s payload: %w", env.Event, err)
	}
	return env.Event, payload, nil
}

// Encode wraps a payload into a wire frame.
func Encode(kind Kind, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	frame, err := json.Marshal(Envelope{Event: kind, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	return frame, nil
}
