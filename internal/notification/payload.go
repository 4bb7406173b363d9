package notification

// EmailPayload is the self-contained delivery payload stored in the outbox.
// Everything needed to render and send the email is captured at enqueue
// time, so delivery does not depend on the lead's state by the time the
// worker picks it up.
type EmailPayload struct {
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
	SellerName     string `json:"sellerName,omitempty"`
	ConsumerName   string `json:"consumerName"`
	HoursRemaining int    `json:"hoursRemaining,omitempty"`
	Final          bool   `json:"final,omitempty"`
	LeadURL        string `json:"leadUrl"`
}
