package attio

// Config holds Attio API client configuration.
type Config struct {
	APIKey  string
	BaseURL string
}

// Record is an Attio record with its identity envelope and raw values.
type Record struct {
	ID     RecordID                `json:"id"`
	Values map[string][]ValueEntry `json:"values"`
}

// RecordID is the nested identifier Attio returns for every record.
type RecordID struct {
	WorkspaceID string `json:"workspace_id"`
	ObjectID    string `json:"object_id"`
	RecordID    string `json:"record_id"`
}

// ValueEntry is one value slot of a record attribute. Attio renders every
// attribute as a list of these, with the populated field depending on the
// attribute type.
type ValueEntry struct {
	Value          string `json:"value,omitempty"`
	Domain         string `json:"domain,omitempty"`
	EmailAddress   string `json:"email_address,omitempty"`
	TargetObject   string `json:"target_object,omitempty"`
	TargetRecordID string `json:"target_record_id,omitempty"`
}

// List identifies an Attio list (pipeline).
type List struct {
	ID   ListID `json:"id"`
	Name string `json:"name"`
}

// ListID is the nested identifier for a list.
type ListID struct {
	WorkspaceID string `json:"workspace_id"`
	ListID      string `json:"list_id"`
}

// ListEntry is a record's membership in a list.
type ListEntry struct {
	ID             ListEntryID `json:"id"`
	TargetRecordID string      `json:"target_record_id"`
	TargetObject   string      `json:"target_object"`
}

// ListEntryID is the nested identifier for a list entry.
type ListEntryID struct {
	WorkspaceID string `json:"workspace_id"`
	ListID      string `json:"list_id"`
	EntryID     string `json:"entry_id"`
}

// CompanyInput is the material for a company get-or-create.
type CompanyInput struct {
	Name    string
	Website string
}

// PersonInput is the material for a person get-or-create.
type PersonInput struct {
	Email     string
	FirstName string
	LastName  string
}

// filter is the recursive query filter Attio's records/query endpoint takes.
type filter map[string]any

// recordEnvelope wraps single-record responses.
type recordEnvelope struct {
	Data Record `json:"data"`
}

// recordListEnvelope wraps multi-record responses.
type recordListEnvelope struct {
	Data []Record `json:"data"`
}

type listEnvelope struct {
	Data []List `json:"data"`
}

type listEntryEnvelope struct {
	Data []ListEntry `json:"data"`
}

// listDetail carries a list's attributes, used to resolve status options.
type listDetail struct {
	Data struct {
		Attributes []struct {
			Type   string `json:"type"`
			Config struct {
				Options []struct {
					ID    string `json:"id"`
					Title string `json:"title"`
				} `json:"options"`
			} `json:"config"`
		} `json:"attributes"`
	} `json:"data"`
}
