package model

// Cycle is the billing period of a subscription.
type Cycle string

const (
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// Cycles lists every accepted Cycle value.
var Cycles = []Cycle{CycleMonthly, CycleYearly}

func (c Cycle) Valid() bool { return oneOf(c, Cycles) }

// Category groups subscriptions for display. It is optional on a subscription.
type Category string

const (
	CategoryEntertainment  Category = "entertainment"
	CategoryFitness        Category = "fitness"
	CategoryShopping       Category = "shopping"
	CategoryDevelopment    Category = "development"
	CategoryProductivity   Category = "productivity"
	CategoryUtilities      Category = "utilities"
	CategoryFinance        Category = "finance"
	CategoryEducation      Category = "education"
	CategoryHealth         Category = "health"
	CategoryNews           Category = "news"
	CategoryFood           Category = "food"
	CategoryTransportation Category = "transportation"
	CategoryOther          Category = "other"
)

var Categories = []Category{
	CategoryEntertainment,
	CategoryFitness,
	CategoryShopping,
	CategoryDevelopment,
	CategoryProductivity,
	CategoryUtilities,
	CategoryFinance,
	CategoryEducation,
	CategoryHealth,
	CategoryNews,
	CategoryFood,
	CategoryTransportation,
	CategoryOther,
}

func (c Category) Valid() bool { return oneOf(c, Categories) }

// ReminderTimeframe is the unit of a ReminderAlert value.
type ReminderTimeframe string

const (
	TimeframeDays  ReminderTimeframe = "days"
	TimeframeHours ReminderTimeframe = "hours"
	TimeframeWeeks ReminderTimeframe = "weeks"
)

var ReminderTimeframes = []ReminderTimeframe{TimeframeDays, TimeframeHours, TimeframeWeeks}

func (t ReminderTimeframe) Valid() bool { return oneOf(t, ReminderTimeframes) }

// Timezone is one of the IANA zones a user may pick.
type Timezone string

var Timezones = []Timezone{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Vancouver",
	"America/Toronto",
	"Europe/London",
	"Europe/Paris",
	"Europe/Berlin",
	"Europe/Rome",
	"Europe/Madrid",
	"Asia/Tokyo",
	"Asia/Shanghai",
	"Asia/Hong_Kong",
	"Asia/Singapore",
	"Australia/Sydney",
	"Australia/Melbourne",
	"Pacific/Auckland",
	"UTC",
}

func (tz Timezone) Valid() bool { return oneOf(tz, Timezones) }

func oneOf[T comparable](v T, set []T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
