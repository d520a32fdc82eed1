// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sms

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/research-agent/pkg/types"
)

// InboundMessage is one SMS received through the carrier webhook.
type InboundMessage struct {
	// From is the sender's phone number.
	From string

	// Body is the message text, used as the research question.
	Body string
}

// ParseInbound extracts an inbound message from a carrier webhook form
// post. Carriers post application/x-www-form-urlencoded with From and
// Body fields.
func ParseInbound(r *http.Request) (InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return InboundMessage{}, fmt.Errorf("parsing webhook form: %w", err)
	}

	msg := InboundMessage{
		From: strings.TrimSpace(r.PostFormValue("From")),
		Body: strings.TrimSpace(r.PostFormValue("Body")),
	}
	if msg.Body == "" {
		return InboundMessage{}, fmt.Errorf("webhook form has no Body field")
	}
	return msg, nil
}

// ToRequest turns an inbound message into a research request on the SMS
// channel.
func (m InboundMessage) ToRequest() types.ResearchRequest {
	return types.NewResearchRequest(m.Body, types.ChannelSMS, 0)
}
