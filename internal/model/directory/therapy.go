package directory

import (
	"net/url"
	"regexp"
	"strings"
)

const therapistSearchBase = "https://www.psychologytoday.com/us/therapists"

var whitespaceRun = regexp.MustCompile(`\s+`)

// TherapyResource is a platform or directory for finding care.
type TherapyResource struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	Phone       string   `json:"phone,omitempty"`
	CallURI     string   `json:"callUri,omitempty"`
	Features    []string `json:"features"`
}

// ProfessionalType describes a kind of licensed provider.
type ProfessionalType struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Credentials string `json:"credentials"`
}

// Therapy groups the therapy-finder listings.
type Therapy struct {
	Resources     []TherapyResource  `json:"resources"`
	Professionals []ProfessionalType `json:"professionals"`
	CrisisNotes   []string           `json:"crisisNotes"`
}

// TherapistSearchURL builds a therapist directory search link for a location and specialty.
// Both inputs are optional.
func TherapistSearchURL(location, specialty string) string {
	location = strings.TrimSpace(location)
	specialty = strings.TrimSpace(specialty)

	var b strings.Builder
	b.WriteString(therapistSearchBase)
	if location != "" {
		b.WriteString("/")
		b.WriteString(whitespaceRun.ReplaceAllString(strings.ToLower(location), "-"))
	}
	if specialty != "" {
		b.WriteString("?search=")
		b.WriteString(strings.ReplaceAll(url.QueryEscape(specialty), "+", "%20"))
	}
	return b.String()
}

func therapy() Therapy {
	resources := []TherapyResource{
		{
			Name:        "Psychology Today",
			Description: "Comprehensive directory of therapists, psychiatrists, and treatment centers",
			Website:     "https://www.psychologytoday.com/us/therapists",
			Features:    []string{"Insurance filters", "Specialty search", "Therapist profiles", "Online therapy options"},
		},
		{
			Name:        "BetterHelp",
			Description: "Online therapy platform with licensed professionals",
			Website:     "https://www.betterhelp.com",
			Features:    []string{"Online sessions", "Text/video options", "Flexible scheduling", "Financial aid available"},
		},
		{
			Name:        "Talkspace",
			Description: "Digital therapy platform for individuals, couples, and teens",
			Website:     "https://www.talkspace.com",
			Features:    []string{"Text therapy", "Video sessions", "Psychiatry services", "Insurance accepted"},
		},
		{
			Name:        "SAMHSA Treatment Locator",
			Description: "Government resource for finding mental health and substance abuse treatment",
			Website:     "https://findtreatment.samhsa.gov",
			Phone:       "1-800-662-4357",
			Features:    []string{"Free service", "Crisis support", "Treatment facilities", "Support groups"},
		},
		{
			Name:        "Open Path Collective",
			Description: "Affordable therapy network with sessions $30-$60",
			Website:     "https://openpathcollective.org",
			Features:    []string{"Reduced rates", "Sliding scale", "In-person & online", "No insurance required"},
		},
	}
	for i := range resources {
		if resources[i].Phone != "" {
			resources[i].CallURI = CallURI(resources[i].Phone)
		}
	}

	return Therapy{
		Resources: resources,
		Professionals: []ProfessionalType{
			{Title: "Psychologist", Description: "Doctoral-level professionals who provide therapy and psychological testing", Credentials: "PhD, PsyD"},
			{Title: "Licensed Clinical Social Worker (LCSW)", Description: "Master's-level therapists specializing in mental health and social services", Credentials: "MSW, LCSW"},
			{Title: "Licensed Professional Counselor (LPC)", Description: "Master's-level counselors providing individual and group therapy", Credentials: "MA, MS, LPC"},
			{Title: "Psychiatrist", Description: "Medical doctors who can prescribe medication and provide therapy", Credentials: "MD, DO"},
			{Title: "Marriage & Family Therapist (MFT)", Description: "Specialists in relationship and family counseling", Credentials: "MA, MS, MFT"},
		},
		CrisisNotes: []string{
			"988 Suicide & Crisis Lifeline: Call or text 988",
			"Crisis Text Line: Text HOME to 741741",
			"SAMHSA Helpline: 1-800-662-4357",
			"Emergency: Call 911 or go to nearest ER",
			"LGBTQ+ Crisis: 1-866-488-7386",
		},
	}
}
