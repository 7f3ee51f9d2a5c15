package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pathakanu/pillMemo/internal/model"
)

// IncomingMessage answers WhatsApp messages Twilio forwards to the webhook.
// Patients can ask for their upcoming reminders; anything else gets usage help.
func (h *Handler) IncomingMessage(c *gin.Context) {
	from := c.PostForm("From")
	body := strings.TrimSpace(c.PostForm("Body"))
	if from == "" || body == "" {
		h.writeTwilioResponse(c, "I need a message to work with. Please try again.")
		return
	}

	destination, err := model.NormalizeDestination(from)
	if err != nil {
		h.log.WithError(err).Warn("webhook: unusable sender address")
		h.writeTwilioResponse(c, "Sorry, I couldn't understand that request.")
		return
	}

	if !isListRequest(strings.ToLower(body)) {
		h.writeTwilioResponse(c, helpResponse())
		return
	}

	reminders, err := h.store.ListPendingByDestination(c.Request.Context(), destination)
	if err != nil {
		h.log.WithError(err).Error("webhook: list reminders")
		h.writeTwilioResponse(c, "Hmm, I couldn't load your reminders. Please try again later.")
		return
	}
	if len(reminders) == 0 {
		h.writeTwilioResponse(c, "You have no upcoming medicine reminders.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your upcoming medicine reminders:\n")
	for i, r := range reminders {
		sb.WriteString(fmt.Sprintf("%d. %s at %s", i+1, r.MedicineName, r.ScheduledTime.In(h.loc).Format("Jan 02 15:04")))
		if r.Frequency != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Frequency))
		}
		sb.WriteString("\n")
	}
	h.writeTwilioResponse(c, sb.String())
}

func (h *Handler) writeTwilioResponse(c *gin.Context, message string) {
	c.XML(http.StatusOK, twimlResponse{Message: message})
}

func isListRequest(body string) bool {
	return body == "list" ||
		body == "reminders" ||
		strings.Contains(body, "my reminders") ||
		strings.Contains(body, "list reminders") ||
		strings.Contains(body, "show reminders")
}

func helpResponse() string {
	return "Reply \"list\" to see your upcoming medicine reminders. Reminders are added from the patient portal."
}
