package protocol

// Client-to-server method types.
const (
	MethodChatSend = "chat.send"
	MethodPing     = "ping"
)

// ChatSend is the payload of a MethodChatSend frame.
type ChatSend struct {
	Content string `json:"content"`
	Sender  string `json:"sender,omitempty"`
}
