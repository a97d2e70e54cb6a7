package directory

import (
	"net/url"
	"strings"
)

// CrisisLine is a hotline that can be called or texted.
type CrisisLine struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description"`
	Available   string `json:"available"`
	Urgent      bool   `json:"urgent,omitempty"`
	CallURI     string `json:"callUri"`
	TextURI     string `json:"textUri,omitempty"`
}

// CopingStrategy is an immediate grounding technique.
type CopingStrategy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// GuidanceSection is a titled list of short guidance bullets.
type GuidanceSection struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary,omitempty"`
	Link    string   `json:"link,omitempty"`
	CallURI string   `json:"callUri,omitempty"`
	Items   []string `json:"items"`
}

// Coping groups everything shown alongside the crisis lines.
type Coping struct {
	Strategies      []CopingStrategy  `json:"strategies"`
	SafetyPlanSteps []string          `json:"safetyPlanSteps"`
	Reminders       []string          `json:"reminders"`
	Emergency       []GuidanceSection `json:"emergency"`
}

// CallURI returns the dialer link for a phone number.
func CallURI(phone string) string {
	return "tel:" + phone
}

// TextURI returns the SMS link for a crisis line. A text instruction of the form
// "KEYWORD to NUMBER" pre-fills the message body with KEYWORD.
func TextURI(phone, instruction string) string {
	if instruction == "" {
		return ""
	}

	keyword, _, found := strings.Cut(instruction, " to ")
	if !found || strings.TrimSpace(keyword) == "" {
		return "sms:" + phone
	}
	return "sms:" + phone + "?body=" + url.QueryEscape(strings.TrimSpace(keyword))
}

func crisisLines() []CrisisLine {
	lines := []CrisisLine{
		{
			Name:        "988 Suicide & Crisis Lifeline",
			Phone:       "988",
			Text:        "988",
			Description: "24/7 crisis support for suicidal thoughts and mental health emergencies",
			Available:   "24/7",
			Urgent:      true,
		},
		{
			Name:        "Crisis Text Line",
			Phone:       "741741",
			Text:        "HOME to 741741",
			Description: "Free, 24/7 crisis support via text message",
			Available:   "24/7",
			Urgent:      true,
		},
		{
			Name:        "SAMHSA National Helpline",
			Phone:       "1-800-662-4357",
			Description: "Treatment referral and information service",
			Available:   "24/7",
		},
		{
			Name:        "National Domestic Violence Hotline",
			Phone:       "1-800-799-7233",
			Text:        "START to 88788",
			Description: "Support for domestic violence situations",
			Available:   "24/7",
		},
		{
			Name:        "LGBTQ+ National Hotline",
			Phone:       "1-888-843-4564",
			Description: "Support for LGBTQ+ individuals in crisis",
			Available:   "Mon-Fri 4pm-12am ET, Sat 12pm-5pm ET",
		},
		{
			Name:        "Veterans Crisis Line",
			Phone:       "1-800-273-8255",
			Text:        "838255",
			Description: "Crisis support specifically for veterans",
			Available:   "24/7",
		},
	}

	for i := range lines {
		lines[i].CallURI = CallURI(lines[i].Phone)
		lines[i].TextURI = TextURI(lines[i].Phone, lines[i].Text)
	}
	return lines
}

func coping() Coping {
	return Coping{
		Strategies: []CopingStrategy{
			{Title: "5-4-3-2-1 Grounding Technique", Description: "Name 5 things you see, 4 you can touch, 3 you hear, 2 you smell, 1 you taste", Icon: "👁️"},
			{Title: "Box Breathing", Description: "Breathe in for 4, hold for 4, out for 4, hold for 4. Repeat.", Icon: "🫁"},
			{Title: "Cold Water", Description: "Splash cold water on your face or hold ice cubes", Icon: "❄️"},
			{Title: "Call Someone", Description: "Reach out to a trusted friend, family member, or crisis line", Icon: "📞"},
			{Title: "Safe Space", Description: "Go to a safe, comfortable place where you feel secure", Icon: "🏠"},
			{Title: "Remove Means", Description: "Put distance between yourself and anything harmful", Icon: "🛡️"},
		},
		SafetyPlanSteps: []string{
			"Recognize your warning signs and triggers",
			"Use coping strategies that help you feel better",
			"Contact people who provide distraction and support",
			"Reach out to family members or friends who can help",
			"Contact mental health professionals or agencies",
			"Make your environment safe by removing harmful items",
		},
		Reminders: []string{
			"Crisis feelings are temporary - they will pass",
			"You have survived difficult times before",
			"Reaching out for help is a sign of strength",
			"You matter and your life has value",
			"There are people who want to help you",
		},
		Emergency: []GuidanceSection{
			{
				Title:   "Emergency Services",
				Summary: "For immediate medical emergencies or if you are in immediate danger",
				CallURI: CallURI("911"),
				Items: []string{
					"Immediate risk of self-harm",
					"Medical emergency",
					"Immediate danger from others",
				},
			},
			{
				Title:   "Mobile Crisis Teams",
				Summary: "Many areas have mobile crisis teams that can come to you",
				Link:    "https://www.samhsa.gov/find-help/national-helpline",
				Items: []string{
					"On-site crisis intervention",
					"Safety planning",
					"Connection to services",
					"Alternative to emergency room",
				},
			},
			{
				Title: "After the Crisis",
				Items: []string{
					"Follow up with a mental health professional",
					"Review and update your safety plan",
					"Consider ongoing therapy or counseling",
					"Build a support network of trusted people",
					"Practice self-care and stress management",
					"Remember that recovery is possible",
				},
			},
		},
	}
}
