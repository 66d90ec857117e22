package diagnostics

// Messages used across the server when writing to the trail.
const (
	MsgServerStart         = "Perplexity MCP Server starting"
	MsgServerReady         = "Server ready and listening"
	MsgToolCallReceived    = "Tool call received"
	MsgAPIRequestStart     = "Calling Perplexity API"
	MsgAPIResponseReceived = "Received API response"
	MsgAPIError            = "Error calling Perplexity API"
	MsgValidationError     = "Validation error"
	MsgValidationComplete  = "Validation complete"
	MsgConfigError         = "Configuration error"
	MsgHandlerSetup        = "Setting up request handlers"
	MsgHandlerRegistered   = "Handler registered"
	MsgResponseFormatted   = "Response formatting complete"
)
