package gateway

// RequestFrame is the client-to-server shape (§6).
type RequestFrame struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// ResponseFrame is the successful server-to-client reply (§6).
type ResponseFrame struct {
	ID     interface{} `json:"id"`
	Type   string      `json:"type"`
	Result interface{} `json:"result"`
}

// ErrorFrame is the server-to-client error reply (§6).
type ErrorFrame struct {
	ID     interface{} `json:"id"`
	Type   string      `json:"type"`
	Error  string      `json:"error"`
	Method string      `json:"method"`
}

// newResponse builds a ResponseFrame echoing id.
func newResponse(id interface{}, result interface{}) ResponseFrame {
	return ResponseFrame{ID: id, Type: "response", Result: result}
}

// newError builds an ErrorFrame echoing id and method (§6, S2/S3/S5).
func newError(id interface{}, method, msg string) ErrorFrame {
	return ErrorFrame{ID: id, Type: "error", Error: msg, Method: method}
}

// RateLimits is the hello frame's advertised limit shape (§6).
type RateLimits struct {
	RequestsPerMinute      int  `json:"requestsPerMinute"`
	SubscriptionsUnlimited bool `json:"subscriptionsUnlimited"`
}

// ConnectionHelloFrame is sent once, synchronously, right after a session
// is admitted and before its read pump starts (§4.9, §6).
type ConnectionHelloFrame struct {
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	Message           string     `json:"message"`
	AvailableAPIs     []string   `json:"availableApis"`
	SubscriptionAPIs  []string   `json:"subscriptionApis"`
	RateLimits        RateLimits `json:"rateLimits"`
}

// NewHello builds the connection hello frame advertising the closed method
// set and the configured rate limit.
func NewHello(requestsPerMinute int) ConnectionHelloFrame {
	return ConnectionHelloFrame{
		Type:             "connection",
		Status:           "connected",
		Message:          "connected to relaygate",
		AvailableAPIs:    append([]string{}, availableAPIs...),
		SubscriptionAPIs: append([]string{}, subscriptionAPIs...),
		RateLimits: RateLimits{
			RequestsPerMinute:      requestsPerMinute,
			SubscriptionsUnlimited: true,
		},
	}
}

// SubscriptionUpdateFrame is delivered to a feed's subscribers (§4.5).
type SubscriptionUpdateFrame struct {
	Type         string      `json:"type"`
	Subscription string      `json:"subscription"`
	Data         interface{} `json:"data"`
	Timestamp    string      `json:"timestamp"`
}

// LegacyBroadcastFrame is delivered to everyone NOT subscribed to the
// head-state feed, for backward wire compatibility (§4.5).
type LegacyBroadcastFrame struct {
	Type      string      `json:"type"`
	Method    string      `json:"method"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}
