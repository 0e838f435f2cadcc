package domain

// Intent is the product context a token request was made from.
type Intent string

const (
	IntentNone                Intent = ""
	IntentBusinessAdvertising Intent = "business_advertising"
)

// Origin describes where a token request came from.
type Origin struct {
	IP     string
	Intent Intent
}
