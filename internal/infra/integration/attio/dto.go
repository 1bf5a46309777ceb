package attio

type recordID struct {
	RecordID string `json:"record_id"`
}

type record struct {
	ID recordID `json:"id"`
}

type recordsResponse struct {
	Data []record `json:"data"`
}

type recordResponse struct {
	Data record `json:"data"`
}

type queryRequest struct {
	Filter map[string]any `json:"filter"`
	Limit  int            `json:"limit"`
}

type personName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

type companyName struct {
	Value string `json:"value"`
}

// recordReference points a record attribute at another record.
type recordReference struct {
	TargetObject   string `json:"target_object"`
	TargetRecordID string `json:"target_record_id"`
}

type recordRequest struct {
	Data struct {
		Values map[string]any `json:"values"`
	} `json:"data"`
}

type noteRequest struct {
	Data noteData `json:"data"`
}

type noteData struct {
	ParentObject   string `json:"parent_object"`
	ParentRecordID string `json:"parent_record_id"`
	Title          string `json:"title"`
	Format         string `json:"format"`
	Content        string `json:"content"`
}
