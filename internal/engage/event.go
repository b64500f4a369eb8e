package engage

// EventKind classifies one inbound update after transport-level parsing.
type EventKind string

const (
	// EventGreeting is the /start command.
	EventGreeting EventKind = "greeting"
	// EventPromoRequest is the /promotions command.
	EventPromoRequest EventKind = "promo_request"
	// EventButton is an inline-keyboard selection.
	EventButton EventKind = "button"
	// EventFreeText is any non-command text message.
	EventFreeText EventKind = "free_text"
	// EventAdminReport is the /stats command.
	EventAdminReport EventKind = "admin_report"
)

// Event is one inbound interaction, already stripped of platform details.
type Event struct {
	Kind        EventKind
	UserID      int64
	DisplayName string

	// Text carries the message body for EventFreeText.
	Text string
	// Selection carries the button token for EventButton.
	Selection string
}

// Option is one interactive choice attached to a reply.
type Option struct {
	Label string
	Token string
}

// Reply is the outbound payload handed back to the transport for delivery.
// An empty Text means nothing should be sent.
type Reply struct {
	Text    string
	Options []Option
}
