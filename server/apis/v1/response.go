package v1

type StatscacheAPIResponse struct {
	// ErrMessage provides more detailed error information. If API call succeeds, the ErrMessage is nil.
	ErrMessage *string `json:"errMessage,omitempty"`
	// Data is the response body.
	Data interface{} `json:"data"`
}

// NewStatscacheAPIResponse creates a new StatscacheAPIResponse.
func NewStatscacheAPIResponse(errMessage *string, data interface{}) StatscacheAPIResponse {
	return StatscacheAPIResponse{
		ErrMessage: errMessage,
		Data:       data,
	}
}
