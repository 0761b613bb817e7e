package resource

// FieldType tags a schema field with its validation rule. The conversation
// package implements a parser per type.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldCurrency FieldType = "currency"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldTime     FieldType = "time"
)

// FieldSpec declares one field of a category's conversational schema.
type FieldSpec struct {
	Name     string
	Prompt   string
	Required bool
	Type     FieldType
}

// schemas declares the ordered field schema per category. The first field of
// every category is the resource name.
var schemas = map[Category][]FieldSpec{
	CategoryContact: {
		{Name: "name", Prompt: "What is the contact's name?", Required: true, Type: FieldString},
		{Name: "email", Prompt: "Email address? (or 'skip')", Required: false, Type: FieldEmail},
		{Name: "phone", Prompt: "Phone number? (or 'skip')", Required: false, Type: FieldPhone},
	},
	CategoryDocument: {
		{Name: "name", Prompt: "What is the document called?", Required: true, Type: FieldString},
		{Name: "summary", Prompt: "Short summary? (or 'skip')", Required: false, Type: FieldString},
	},
	CategorySubscription: {
		{Name: "name", Prompt: "What is the subscription for?", Required: true, Type: FieldString},
		{Name: "amount", Prompt: "Monthly amount? (e.g. 9.99)", Required: true, Type: FieldCurrency},
		{Name: "renews_on", Prompt: "Renewal date? (YYYY-MM-DD, or 'skip')", Required: false, Type: FieldDate},
	},
	CategoryEvent: {
		{Name: "name", Prompt: "What is the event?", Required: true, Type: FieldString},
		{Name: "date", Prompt: "What date? (YYYY-MM-DD)", Required: true, Type: FieldDate},
		{Name: "time", Prompt: "What time? (HH:MM, or 'skip')", Required: false, Type: FieldTime},
		{Name: "attendees", Prompt: "How many attendees? (or 'skip')", Required: false, Type: FieldNumber},
	},
}

// Schema returns the ordered field schema for a category.
func Schema(c Category) []FieldSpec {
	return schemas[c]
}

// defaultVisibility is the creation-time flag policy per category.
// Contacts and subscriptions start private; documents and events start
// visible to every non-owner role that can be granted by flag.
var defaultVisibility = map[Category]Visibility{
	CategoryContact:      {},
	CategorySubscription: {},
	CategoryDocument:     {Admin: true, Editor: true, Viewer: true},
	CategoryEvent:        {Admin: true, Viewer: true},
}

// DefaultVisibility returns the policy-defined visibility for new resources
// of the category.
func DefaultVisibility(c Category) Visibility {
	return defaultVisibility[c]
}
