package offline

import "strings"

// Welcome returns the greeting a conversation opens with. enhanced selects the wording for the
// insight-oriented mode.
func Welcome(context string, enhanced bool) Response {
	switch strings.ToLower(strings.TrimSpace(context)) {
	case ContextProfile:
		mode := "Hızlı Mod: Kısa ve net öneriler sunarım."
		if enhanced {
			mode = "Gelişmiş Mod: CV yükle, içeriğini inceleyip somut öneriler sunayım."
		}
		return Response{
			Text: "Merhaba! Ben Ada AI, kariyer yolculuğunun her adımında yanındayım.\n\n" + mode +
				"\n\nBirlikte yapabileceklerimiz:\n• Profilini ve özetini daha etkili hâle getirmek\n" +
				"• Eksik becerileri tespit edip öğrenme planı hazırlamak\n• Portföy/proje önerileri geliştirmek\n" +
				"• CV ve LinkedIn için metin iyileştirmek",
			Suggestions: []string{
				"CV'mi yükleyip analiz et",
				"GitHub profilimi nasıl güçlendirebilirim?",
				"Hangi projeleri portföyüme eklemeliyim?",
				"Profilimi hangi alanlarda güçlendirebilirim?",
			},
		}
	case ContextInterview:
		var extra string
		if enhanced {
			extra = "🧠 CV bazlı hazırlık: CV'ni yükle, kişiselleştirilmiş soru ve cevap stratejileri üretelim.\n\n"
		}
		return Response{
			Text: "Selam! Ben Ada AI 💪 Başvuru öncesinden teklif aşamasına kadar seninle beraberim.\n\n" + extra +
				"**Birlikte odaklanabileceklerimiz:**\n• Teknik ve behavioral soru pratiği\n" +
				"• STAR tekniği ile güçlü hikâyeler\n• Şirket/pozisyon araştırması\n• Teklif değerlendirme ve müzakere",
			Suggestions: []string{
				"Bu önerileri nasıl uygularım?",
				"Hangi projeleri eklemeliyim?",
				"CV formatımı değiştirmeliyim?",
				"LinkedIn profilimi güncelle",
			},
		}
	case ContextNetwork:
		var extra string
		if enhanced {
			extra = "Gelişmiş Mod: Profilini ve bağlantılarını analiz edip kişiselleştirilmiş öneriler sunarım.\n\n"
		}
		return Response{
			Text: "Merhaba! Ben Ada AI, topluluk ve network tarafında da yanındayım.\n\n" + extra +
				"Beraber şunlara odaklanabiliriz:\n• Doğru kişilerle bağlantı kurma\n" +
				"• Etkileşim ve görünürlük artırma\n• Güçlü LinkedIn profili oluşturma",
			Suggestions: []string{
				"LinkedIn profilimi nasıl güçlendirebilirim?",
				"Hangi topluluklarla etkileşime girebilirim?",
				"Network'ümü nasıl büyütürüm?",
				"Profilimi hangi alanlarda güçlendirebilirim?",
			},
		}
	default:
		mode := "⚡ Hızlı Mod: Kısa ve net yanıtlar"
		if enhanced {
			mode = "📊 Gelişmiş Mod: İçgörü odaklı, kapsamlı yanıtlar"
		}
		return Response{
			Text: "Merhaba! 😊 Ben Ada AI, Teknolojide Öncü Kadınları Güçlendirme Asistanı.\n\n" + mode +
				"\n\nSana nasıl yardım edebilirim:\n• Kariyer planlama ve iş arama stratejileri\n" +
				"• Öğrenme yol haritası ve beceri gelişimi\n• CV/LinkedIn inceleme ve iyileştirme\n" +
				"• Mülakat pratiği ve özgüven artırma\n• Network ve topluluk içinde görünürlük\n\n" +
				"Bugün hangi konuda ilerleyelim?",
			Suggestions: []string{
				"Kariyer planımı birlikte çıkaralım",
				"Öğrenme yol haritası öner",
				"CV'imi değerlendir ve iyileştir",
				"Mülakat hazırlığı için pratik yapalım",
			},
		}
	}
}
