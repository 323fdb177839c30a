package exitcode

const (
	Success     = 0
	UsageError  = 1
	FileError   = 2
	DBConnError = 3
	IngestError = 4
	QueryError  = 5
)
