package constants

// RecordStatus is the outcome of extracting one document.
type RecordStatus string

// Stable values (serialized as-is in JSON, XLSX and the batch store).
const (
	RecordStatusOK    RecordStatus = "ok"
	RecordStatusError RecordStatus = "error"
)

const (
	// ErrorSentinel replaces every field of a record whose document could not be processed.
	ErrorSentinel = "ERROR"
	// ErrorFileSuffix is appended to the source file name of a failed record.
	ErrorFileSuffix = " (ERROR)"
	// NotFoundLabel is what the export renders for an empty field.
	NotFoundLabel = "Not found"
)
