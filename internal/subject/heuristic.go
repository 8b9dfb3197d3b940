package subject

import (
	"regexp"
	"strings"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/textparse"
)

// heuristicConfidence is assigned to every subject built by Heuristic.
const heuristicConfidence = 0.3

// typeKeywords is checked in order; the first type with a matching keyword
// wins.
var typeKeywords = []struct {
	typ      model.SubjectType
	keywords []string
}{
	{model.SubjectVehicleWrap, []string{"vehicle wrap", "van", "truck", "trailer", "vehicle", "car door"}},
	{model.SubjectBusinessCard, []string{"business card", "card"}},
	{model.SubjectBillboard, []string{"billboard"}},
	{model.SubjectBanner, []string{"banner"}},
	{model.SubjectStorefront, []string{"storefront", "store front", "shop front", "shop window", "window"}},
	{model.SubjectBusinessSign, []string{"sign", "signage", "placard"}},
	{model.SubjectAdvertisement, []string{"advertisement", "flyer", "poster", "ad"}},
}

var keywordPatterns = map[string]*regexp.Regexp{}

func init() {
	add := func(k string) {
		keywordPatterns[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `s?\b`)
	}
	for _, tk := range typeKeywords {
		for _, k := range tk.keywords {
			add(k)
		}
	}
	for _, k := range positionKeywords {
		add(k)
	}
}

var positionKeywords = []string{"top left", "top right", "bottom left", "bottom right", "center", "left", "right", "top", "bottom"}

var sizeKeywords = map[string]string{
	"large":    "large",
	"big":      "large",
	"fills":    "large",
	"dominant": "large",
	"small":    "small",
	"tiny":     "small",
	"medium":   "medium",
}

var quoted = regexp.MustCompile(`"([^"\n]{2,})"`)

// Heuristic builds a low-confidence analysis from a free-text model reply
// that could not be parsed as JSON. It never fails.
func Heuristic(raw string) *model.SubjectAnalysis {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)

	a := &model.SubjectAnalysis{
		DetectedSubjects:        []model.BusinessSubject{},
		OtherObjects:            []string{},
		SubjectIsolationSuccess: false,
		Description:             truncate(text, 500),
		Degraded:                true,
	}

	typ := model.SubjectUnknown
	for _, tk := range typeKeywords {
		if containsAny(lower, tk.keywords) {
			typ = tk.typ
			break
		}
	}

	ocr := textparse.ParseOCR(text)
	data := model.BusinessData{
		BusinessName: quotedName(text),
		PhoneNumber:  ocr.PhoneNumber,
		Website:      ocr.Website,
		Address:      ocr.Address,
		Services:     ocr.Services,
	}
	hasData := data.BusinessName != "" || data.PhoneNumber != "" || data.Website != ""
	if typ == model.SubjectUnknown && hasData {
		typ = model.SubjectAdvertisement
	}
	if typ == model.SubjectUnknown {
		a.BusinessRelevanceScore = 0
		return a
	}

	subj := model.BusinessSubject{
		Type:        typ,
		Description: truncate(text, 200),
		Location: model.SubjectLocation{
			Position:     firstKeyword(lower, positionKeywords, "center"),
			SizeRelative: sizeOf(lower),
		},
		BusinessData: data,
		TextContent:  quotedText(text),
		Confidence:   heuristicConfidence,
	}
	a.DetectedSubjects = append(a.DetectedSubjects, subj)
	primary := subj
	a.PrimaryBusinessSubject = &primary
	a.BusinessRelevanceScore = heuristicConfidence
	if hasData {
		a.BusinessRelevanceScore = 0.5
	}
	return a
}

func quotedText(text string) []string {
	out := []string{}
	for _, m := range quoted.FindAllStringSubmatch(text, -1) {
		if s := strings.TrimSpace(m[1]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// quotedName treats the first quoted fragment that is not a phone, email
// or URL as the business name.
func quotedName(text string) string {
	for _, s := range quotedText(text) {
		if textparse.ParsePhone(s) != "" || textparse.IsEmail(s) || textparse.IsWebsite(s) {
			continue
		}
		return s
	}
	return ""
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if keywordPatterns[k].MatchString(s) {
			return true
		}
	}
	return false
}

func firstKeyword(s string, keywords []string, fallback string) string {
	for _, k := range keywords {
		if keywordPatterns[k].MatchString(s) {
			return k
		}
	}
	return fallback
}

func sizeOf(s string) string {
	for _, w := range strings.Fields(s) {
		if size, ok := sizeKeywords[strings.Trim(w, ".,;:")]; ok {
			return size
		}
	}
	return "medium"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
