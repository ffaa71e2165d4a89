package models

type TransitionKind string

const (
	TransitionCreated  TransitionKind = "request.created"
	TransitionAccepted TransitionKind = "request.accepted"
	TransitionRejected TransitionKind = "request.rejected"
)

// Transition is the outcome of a state change handed to the notifier.
type Transition struct {
	Kind    TransitionKind
	Request FriendRequest
	// Actor is the user who caused the transition: the sender on create,
	// the recipient on accept and reject.
	Actor UserSummary
}

// Event is a typed payload pushed over a live connection.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RequestCreatedPayload struct {
	Message string      `json:"message"`
	Sender  UserSummary `json:"sender"`
}

type RequestAcceptedPayload struct {
	Message string      `json:"message"`
	Friend  UserSummary `json:"friend"`
}

type RequestRejectedPayload struct {
	Message string `json:"message"`
}
