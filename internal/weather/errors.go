package weather

import "fmt"

// FetchError reports that the remote service could not be reached.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error retrieving local weather: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError reports a response that could not be turned into Conditions.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing weather data: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// RemoteError is an error reported by the weather service itself.
type RemoteError struct {
	Type        string
	Description string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("weather API error (%s): %s", e.Type, e.Description)
}
