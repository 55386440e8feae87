package domain

// Experience is how familiar an individual user is with AI tools.
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"

	// DefaultExperience is preselected on the individual form.
	DefaultExperience = ExperienceBeginner
)

// CompanySize buckets organizations by head count.
type CompanySize string

const (
	SizeStartup    CompanySize = "startup"    // 1-10
	SizeSmall      CompanySize = "small"      // 11-50
	SizeMedium     CompanySize = "medium"     // 51-200
	SizeLarge      CompanySize = "large"      // 201-1000
	SizeEnterprise CompanySize = "enterprise" // 1000+

	// DefaultCompanySize is preselected on the organization form.
	DefaultCompanySize = SizeStartup
)

// Interests offered during individual onboarding.
var Interests = []string{
	"Technology", "Business", "Creative Writing", "Education", "Healthcare",
	"Finance", "Marketing", "Design", "Programming", "Research",
}

// Industries offered during organization onboarding.
var Industries = []string{
	"Technology", "Healthcare", "Finance", "Education", "Retail",
	"Manufacturing", "Consulting", "Media", "Real Estate", "Other",
}

// OrganizationGoals offered during organization onboarding.
var OrganizationGoals = []string{
	"Improve team productivity",
	"Automate workflows",
	"Enhance customer service",
	"Data analysis & insights",
	"Content creation",
	"Training & education",
}

// IndividualProfile is collected when an individual finishes onboarding.
type IndividualProfile struct {
	Name       string     `json:"name"       bson:"name"       validate:"required"`
	Profession string     `json:"profession" bson:"profession" validate:"required"`
	Interests  []string   `json:"interests"  bson:"interests"  validate:"min=1,dive,required"`
	Goals      string     `json:"goals"      bson:"goals"      validate:"required"`
	Experience Experience `json:"experience" bson:"experience" validate:"required,oneof=beginner intermediate advanced"`
}

// OrganizationProfile is collected when an organization finishes onboarding.
type OrganizationProfile struct {
	CompanyName string      `json:"company_name"      bson:"company_name" validate:"required"`
	Industry    string      `json:"industry"          bson:"industry"     validate:"required"`
	Size        CompanySize `json:"size"              bson:"size"         validate:"required,oneof=startup small medium large enterprise"`
	Description string      `json:"description"       bson:"description"  validate:"required"`
	Website     string      `json:"website,omitempty" bson:"website,omitempty" validate:"omitempty,url"`
	Goals       []string    `json:"goals"             bson:"goals"        validate:"min=1,dive,required"`
}
