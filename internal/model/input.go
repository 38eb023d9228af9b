package model

// InputRequest asks the foreground for a value.
type InputRequest struct {
	Title string
	Label string
	// Default is the proposed value, nil when there is none.
	Default *string
	// Secret values are masked while typed and never reported.
	Secret bool
}

// InputResponse is the foreground answer to an InputRequest.
type InputResponse struct {
	Value    string
	Accepted bool
}
