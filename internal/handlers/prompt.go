package handlers

import (
	"fmt"
	"strings"

	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/transport"
)

// DefaultSystemPrompt introduces the assistant when no prompt is configured.
const DefaultSystemPrompt = `Sen Ada AI'sın: Up Hera topluluğundaki, teknolojide kariyer yapan kadınlara rehberlik eden bir kariyer mentorusun.
Türkçe, samimi ve cesaretlendirici bir dille yanıt ver. Somut adımlar ve örnekler sun.`

var contextInstructions = map[string]string{
	"general":   "Genel kariyer sorularında yardımcı ol: kariyer planlama, öğrenme yol haritası, beceri gelişimi.",
	"profile":   "Kullanıcının profilini, CV'sini ve LinkedIn görünürlüğünü güçlendirmesine odaklan.",
	"interview": "Mülakat hazırlığına odaklan: teknik ve davranışsal sorular, STAR tekniği, teklif müzakeresi.",
	"network":   "Network ve topluluk içinde görünürlük, doğru kişilerle bağlantı kurma konularına odaklan.",
}

var responseModeInstructions = map[string]string{
	"short": "Kısa ve net yanıt ver; en fazla birkaç madde kullan.",
	"long":  "Detaylı ve kapsamlı yanıt ver; adımları açıkla.",
}

func systemPrompt(base, chatContext string, user *transport.UserData, responseMode string, enhanced bool) string {
	var sb strings.Builder
	sb.WriteString(base)

	if ins, ok := contextInstructions[chatContext]; ok {
		sb.WriteString("\n\n")
		sb.WriteString(ins)
	}

	if user != nil {
		var facts []string
		if user.Name != "" {
			facts = append(facts, "Adı: "+user.Name)
		}
		if user.UpschoolBatch != "" {
			facts = append(facts, "UpSchool dönemi: "+user.UpschoolBatch)
		}
		if len(user.Skills) > 0 {
			facts = append(facts, "Becerileri: "+strings.Join(user.Skills, ", "))
		}
		if user.CareerGoal != "" {
			facts = append(facts, "Kariyer hedefi: "+user.CareerGoal)
		}
		if len(facts) > 0 {
			sb.WriteString("\n\nKullanıcı hakkında:\n- ")
			sb.WriteString(strings.Join(facts, "\n- "))
		}
	}

	if ins, ok := responseModeInstructions[responseMode]; ok {
		sb.WriteString("\n\n")
		sb.WriteString(ins)
	}
	if !enhanced {
		sb.WriteString("\n\nHızlı moddasın: içgörü analizine girmeden doğrudan yanıt ver.")
	}

	return sb.String()
}

// buildMessages lays out the backend conversation: the system prompt, the prior exchanges and the new
// user message.
func buildMessages(system string, history []models.HistoryEntry, message string) []models.Message {
	msgs := make([]models.Message, 0, len(history)+2)
	msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: system})
	for _, h := range history {
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		role := models.ParseRole(h.Type)
		if role == models.RoleSystem {
			continue
		}
		msgs = append(msgs, models.Message{Role: role, Content: h.Content})
	}
	msgs = append(msgs, models.Message{Role: models.RoleUser, Content: message})
	return msgs
}

func conversationID(userID, chatContext string) string {
	return fmt.Sprintf("%s:%s", userID, chatContext)
}
