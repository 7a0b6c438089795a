// Package offline synthesizes assistant answers locally when no live attempt produced any content.
// Answers are deterministic: the same message and context always yield the same response.
package offline

import (
	"slices"
	"strings"
)

// Response is a canned answer with its follow-up suggestions.
type Response struct {
	Text        string
	Suggestions []string
}

// Conversation contexts the assistant can be opened in.
const (
	ContextGeneral   = "general"
	ContextProfile   = "profile"
	ContextInterview = "interview"
	ContextNetwork   = "network"
)

type rule struct {
	// context restricts the rule to one conversation context; empty matches any.
	context  string
	keywords []string
	response Response
}

var rules = []rule{
	{
		context:  ContextInterview,
		keywords: []string{"mülakat", "interview"},
		response: Response{
			Text: `🎯 **Mülakat Hazırlık Rehberi**

**Teknik Mülakat İçin:**
• STAR tekniği ile projelerini anlat
• Kod yazarken düşüncelerini sesli ifade et
• Time complexity ve space complexity'yi belirt
• Test case'ler düşün

**Behavioral Sorular İçin:**
• "En zor proje" sorusu için UpSchool projelerini kullan
• "Takım çalışması" için grup projelerini anlat
• "Hata yönetimi" için debugging deneyimlerini paylaş

**Hangi konuda daha detaylı bilgi istiyorsun?**`,
			Suggestions: []string{
				"STAR tekniği nasıl kullanılır?",
				"Teknik sorulara nasıl hazırlanırım?",
				"Özgüvenimi nasıl artırırım?",
				"Mülakat öncesi ne yapmalıyım?",
			},
		},
	},
	{
		context:  ContextProfile,
		keywords: []string{"cv", "özgeçmiş"},
		response: Response{
			Text: `📄 **CV Optimizasyon Rehberi**

**Güçlü CV İçin:**
• Action verbs kullan (Geliştirdim, Yönettim, Optimize ettim)
• Sayısal sonuçlar ekle (Kullanıcı deneyimini %40 artırdım)
• UpSchool projelerini öne çıkar
• GitHub linkini ekle

**Teknik CV Formatı:**
• Contact bilgileri
• Professional Summary (2-3 cümle)
• Skills (Frontend, Backend, Tools)
• Projects (En güçlü 3-4 proje)

**CV'ni göndermek ister misin?**`,
			Suggestions: []string{
				"CV formatı nasıl olmalı?",
				"Hangi projeleri eklemeliyim?",
				"Skills bölümü nasıl yazılır?",
				"GitHub profilimi nasıl güçlendiririm?",
			},
		},
	},
	{
		keywords: []string{"merhaba", "selam", "hello"},
		response: Response{
			Text: `Merhaba! 👋 Ben Ada AI - Up Hera topluluğunun AI mentoru!

Senin teknoloji yolculuğunda yanındayım.

**Sana nasıl yardım edebilirim:**
• 🎯 Mülakat hazırlığı
• 📄 CV optimizasyonu
• 💼 İş arama stratejileri
• 🚀 Kariyer planlama
• 💻 Teknik beceri geliştirme

Hangi konuda sohbet etmek istiyorsun?`,
			Suggestions: []string{
				"Mülakat hazırlığı yapalım",
				"CV'mi optimize edelim",
				"Kariyer planımı konuşalım",
				"Teknik becerilerimi geliştirelim",
			},
		},
	},
	{
		keywords: []string{"kariyer", "iş", "job"},
		response: Response{
			Text: `💼 **Kariyer Rehberi**

**İş Arama Stratejileri:**
• LinkedIn profilini güncelle ve aktif ol
• GitHub'da projelerini paylaş
• Networking etkinliklerine katıl
• UpSchool topluluğunu kullan

**Popüler Pozisyonlar:**
• Frontend Developer (React, Vue.js)
• Backend Developer (Node.js, Python)
• Full Stack Developer
• Data Scientist

**Hangi alanda çalışmak istiyorsun?**`,
			Suggestions: []string{
				"Frontend developer olmak istiyorum",
				"Backend developer pozisyonları",
				"Maaş müzakeresi nasıl yapılır?",
				"Remote iş fırsatları neler?",
			},
		},
	},
	{
		keywords: []string{"react", "javascript", "frontend"},
		response: Response{
			Text: `⚛️ **Frontend Development Rehberi**

**Öğrenme Yolu:**
1. **HTML/CSS** (2-3 hafta)
2. **JavaScript** (4-6 hafta)
3. **React** (6-8 hafta)
4. **TypeScript** (2-3 hafta)

**Önerilen Projeler:**
• Todo App (React + LocalStorage)
• Weather App (API integration)
• Portfolio Website

**Hangi konuda yardım istiyorsun?**`,
			Suggestions: []string{
				"React hooks nasıl kullanılır?",
				"API entegrasyonu yapalım",
				"State management öğrenelim",
				"Proje fikirleri ver",
			},
		},
	},
	{
		keywords: []string{"python", "data", "machine learning"},
		response: Response{
			Text: `🐍 **Data Science & Python Rehberi**

**Öğrenme Yolu:**
1. **Python Temelleri** (3-4 hafta)
2. **Pandas & NumPy** (2-3 hafta)
3. **Data Visualization** (Matplotlib, Seaborn)
4. **Machine Learning** (Scikit-learn)

**Önerilen Projeler:**
• Data Analysis Dashboard
• ML Model (Classification/Regression)
• Web Scraping Tool

**Hangi konuda yardım istiyorsun?**`,
			Suggestions: []string{
				"Python temellerini öğrenelim",
				"Pandas kullanımı",
				"ML modeli geliştirelim",
				"Data visualization yapalım",
			},
		},
	},
}

var fallback = Response{
	Text: `🤖 **Ada AI Yanıtı**

Senin sorunla ilgili yardım etmek istiyorum. Teknoloji sektöründe başarılı olman için rehberlik edebilirim.

**Genel Öneriler:**
• Sürekli öğrenmeye devam et
• Projeler geliştir ve GitHub'da paylaş
• Networking yap ve topluluklara katıl

**Hangi konuda daha detaylı bilgi istiyorsun?**`,
	Suggestions: []string{
		"Mülakat hazırlığı yapalım",
		"CV optimizasyonu",
		"Teknik beceri geliştirme",
		"Kariyer planlama",
	},
}

// Respond picks the canned answer for message in the given conversation context. Context-specific rules
// are checked before general ones, in declaration order; the default answer is used when nothing matches.
// The result never has empty text.
func Respond(message, context string) Response {
	lower := strings.ToLower(message)
	context = strings.ToLower(strings.TrimSpace(context))

	for _, r := range rules {
		if r.context != "" && r.context != context {
			continue
		}
		if slices.ContainsFunc(r.keywords, func(k string) bool { return strings.Contains(lower, k) }) {
			return r.response.clone()
		}
	}
	return fallback.clone()
}

func (r Response) clone() Response {
	r.Suggestions = slices.Clone(r.Suggestions)
	return r
}
