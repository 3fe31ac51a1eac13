package models

// ErrorResponse is the error envelope returned by every failing endpoint
type ErrorResponse struct {
	Message string `json:"message"`
}

// DataResponse is the success envelope returned by every endpoint
type DataResponse struct {
	Data interface{} `json:"data"`
}

// HealthCheckResponse returns the health check response struct
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
