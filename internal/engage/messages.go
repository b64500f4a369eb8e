package engage

import (
	"math/rand"
	"strings"
	"sync"
)

// Button tokens carried in inline-keyboard callback data.
const (
	SelLearnMore    = "learn_more"
	SelContactAdmin = "contact_admin"
	SelViewAccount  = "view_account"
)

// Fixed reply texts.
const (
	TextRateLimited  = "⏳ Please wait a minute before sending more messages."
	TextApology      = "⚠️ An error occurred. Please try again later."
	TextUnauthorized = "🚫 Unauthorized access."
	TextAdminFollow  = "⏳ Please wait, an admin will get back to you soon!"
	TextPromoFooter  = "Use /promotions to learn more!"
)

var welcomeNew = []string{
	"👋 Welcome to our Telegram Account Marketing Hub! 🌟 Discover premium Telegram accounts! Use /promotions to learn more!",
	"🎉 Hey there! Excited to have you! Explore our top-tier Telegram accounts with /promotions! 🚀",
	"✨ New here? Welcome to the best place for Telegram account promotions! Check out /promotions! 📱",
}

var welcomeBack = []string{
	"🎉 Welcome back! Ready for more Telegram account awesomeness? Use /promotions! 🚀",
	"👋 Great to see you again! Dive into our latest Telegram account offers with /promotions! 🌟",
	"✨ You're back! Explore our premium Telegram accounts with /promotions! 📱",
}

var promoPitches = []string{
	"🌟 Discover Premium Telegram Accounts! High-quality, verified accounts for all your needs! Reply 'INFO' for details! 📱",
	"🚀 Elevate your Telegram game with our exclusive accounts! Reply 'INTERESTED' to learn more! ✨",
	"🎉 Special Promotion! Get the best Telegram accounts tailored for you! Reply 'DETAILS' now! 🛒",
}

// Selector picks reply texts. Variant choice is uniform and independent per
// call; repeats across calls are expected. The random source is injected so
// tests can pin the sequence.
type Selector struct {
	contact string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector builds a selector. contact is the handle interpolated into
// replies that point users at a human (e.g. "@none_seller").
func NewSelector(contact string, rnd *rand.Rand) *Selector {
	return &Selector{contact: contact, rnd: rnd}
}

func (s *Selector) pick(variants []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return variants[s.rnd.Intn(len(variants))]
}

func (s *Selector) WelcomeNew() string  { return s.pick(welcomeNew) }
func (s *Selector) WelcomeBack() string { return s.pick(welcomeBack) }
func (s *Selector) PromoPitch() string  { return s.pick(promoPitches) }

// ButtonReply returns the fixed text for an inline selection, or "" for an
// unknown token.
func (s *Selector) ButtonReply(token string) string {
	switch token {
	case SelLearnMore:
		return "📱 Our Telegram accounts are perfect for:\n" +
			"✅ Business marketing\n" +
			"✅ Community building\n" +
			"✅ Personal branding\n\n" +
			"Reply 'INTERESTED' to get in touch with our team!"
	case SelContactAdmin:
		return "⏳ An admin will reach out to you soon! In the meantime, reply 'INFO' for more details!"
	case SelViewAccount:
		return "🌟 Interested in our premium Telegram accounts?\n" +
			"Contact our session account: " + s.contact + "\n" +
			"An admin will guide you through the process!"
	}
	return ""
}

// TextReply maps normalized free text to its canned reply. The second return
// is false when the input is unrecognized and the fallback applies.
func (s *Selector) TextReply(text string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "info":
		return "ℹ️ Our Telegram accounts are verified and ready for your marketing needs! Use /promotions to explore!", true
	case "interested":
		return "🎉 Great! Contact our session account " + s.contact + " to proceed! An admin will assist you soon!", true
	case "details":
		return "📱 Premium Telegram accounts with top features! Reply 'INTERESTED' or use /promotions for more!", true
	}
	return "", false
}

// Fallback is the reply for unrecognized free text. It always carries a
// freshly chosen promo pitch.
func (s *Selector) Fallback() string {
	return TextAdminFollow + "\n\n" + s.PromoPitch()
}
