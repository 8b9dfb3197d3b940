package model

// BoundingBox locates one recognised text fragment in the image.
type BoundingBox struct {
	Text       string  `json:"text"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is the output of one text-extraction provider call.
type ExtractionResult struct {
	Text             string        `json:"text"`
	Confidence       float64       `json:"confidence"`
	Provider         string        `json:"provider"`
	BoundingBoxes    []BoundingBox `json:"boundingBoxes,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs"`
}

// SubjectType classifies a visual subject.
type SubjectType string

const (
	SubjectBusinessSign  SubjectType = "business_sign"
	SubjectStorefront    SubjectType = "storefront"
	SubjectBusinessCard  SubjectType = "business_card"
	SubjectAdvertisement SubjectType = "advertisement"
	SubjectVehicleWrap   SubjectType = "vehicle_wrap"
	SubjectBillboard     SubjectType = "billboard"
	SubjectBanner        SubjectType = "banner"
	SubjectUnknown       SubjectType = "unknown"
)

// ParseSubjectType maps free text to a known subject type, defaulting to
// SubjectUnknown.
func ParseSubjectType(s string) SubjectType {
	switch t := SubjectType(s); t {
	case SubjectBusinessSign, SubjectStorefront, SubjectBusinessCard, SubjectAdvertisement,
		SubjectVehicleWrap, SubjectBillboard, SubjectBanner:
		return t
	}
	return SubjectUnknown
}

// BusinessRelevant reports whether the type can carry business information.
func (t SubjectType) BusinessRelevant() bool {
	return t != SubjectUnknown && t != ""
}

// SubjectLocation describes where a subject sits in the frame.
type SubjectLocation struct {
	Position     string `json:"position"`
	SizeRelative string `json:"sizeRelative"`
}

// BusinessData holds business fields read from a single subject.
type BusinessData struct {
	BusinessName string   `json:"businessName,omitempty"`
	PhoneNumber  string   `json:"phoneNumber,omitempty"`
	Website      string   `json:"website,omitempty"`
	Services     []string `json:"services,omitempty"`
	Address      string   `json:"address,omitempty"`
}

// BusinessSubject is one visually distinct element detected in the image.
type BusinessSubject struct {
	Type         SubjectType     `json:"type"`
	Description  string          `json:"description"`
	Location     SubjectLocation `json:"location"`
	BusinessData BusinessData    `json:"businessData"`
	TextContent  []string        `json:"textContent"`
	Confidence   float64         `json:"confidence"`
}

// SubjectAnalysis is the output of the visual subject analyzer.
type SubjectAnalysis struct {
	DetectedSubjects        []BusinessSubject `json:"detectedSubjects"`
	PrimaryBusinessSubject  *BusinessSubject  `json:"primaryBusinessSubject"`
	OtherObjects            []string          `json:"otherObjects"`
	SubjectIsolationSuccess bool              `json:"subjectIsolationSuccess"`
	BusinessRelevanceScore  float64           `json:"businessRelevanceScore"`
	Description             string            `json:"description,omitempty"`
	Degraded                bool              `json:"degraded,omitempty"`
}
