package signal

import "encoding/json"

// rpcFrame is a generic JSON-RPC 2.0 frame from signal-cli. Notifications
// carry Method+Params; responses carry ID plus Result or Error.
type rpcFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// receiveParams is the payload of a "receive" notification.
type receiveParams struct {
	Account  string    `json:"account,omitempty"`
	Envelope *envelope `json:"envelope,omitempty"`
}

type envelope struct {
	Source       string       `json:"source,omitempty"`
	SourceNumber string       `json:"sourceNumber,omitempty"`
	SourceName   string       `json:"sourceName,omitempty"`
	Timestamp    int64        `json:"timestamp,omitempty"`
	DataMessage  *dataMessage `json:"dataMessage,omitempty"`
}

type dataMessage struct {
	Timestamp   int64        `json:"timestamp,omitempty"`
	Message     string       `json:"message,omitempty"`
	GroupInfo   *groupInfo   `json:"groupInfo,omitempty"`
	Mentions    []mention    `json:"mentions,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type groupInfo struct {
	GroupID   string `json:"groupId,omitempty"`
	GroupName string `json:"groupName,omitempty"`
}

type mention struct {
	Name   string `json:"name,omitempty"`
	Number string `json:"number,omitempty"`
	UUID   string `json:"uuid,omitempty"`
	Start  int    `json:"start,omitempty"`
	Length int    `json:"length,omitempty"`
}

type attachment struct {
	ContentType    string `json:"contentType,omitempty"`
	Filename       string `json:"filename,omitempty"`
	ID             string `json:"id,omitempty"`
	Size           int64  `json:"size,omitempty"`
	StoredFilename string `json:"storedFilename,omitempty"`
}
