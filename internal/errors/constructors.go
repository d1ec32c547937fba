package errors

// Convenience constructors for the failure modes of the content pipeline.

// Content errors

// MalformedMetadata indicates a page header that did not parse to a mapping.
func MalformedMetadata(route string, cause error) *SiteError {
	return Wrap(cause, CategoryContent, SeverityFatal, "page metadata is not a mapping").
		WithContext("route", route)
}

// KeyNotFound indicates a metadata lookup for a key the page does not declare.
func KeyNotFound(route, key string) *SiteError {
	return New(CategoryNotFound, SeverityError, "metadata key not found").
		WithContext("route", route).
		WithContext("key", key)
}

// InvalidDate indicates a post whose date field is not a date value.
func InvalidDate(route string, value any) *SiteError {
	return New(CategoryContent, SeverityFatal, "wrong date format").
		WithContext("route", route).
		WithContext("date", value)
}

// Cache and discovery errors

// FileUnavailable indicates a file that vanished between discovery and load.
// Callers skip the path for the current reload cycle.
func FileUnavailable(path string, cause error) *SiteError {
	return Wrap(cause, CategoryFileSystem, SeverityWarning, "file unavailable").
		WithContext("path", path)
}

// Lookup errors

// RouteNotFound indicates a requested route missing from a collection snapshot.
func RouteNotFound(route string) *SiteError {
	return New(CategoryNotFound, SeverityError, "route not found").
		WithContext("route", route)
}

// Pagination errors. These identify the offending metadata so authors can
// spot the mistake instead of debugging an empty page.

// UnknownPaginationMode indicates a paginate value other than "posts" or "categories".
func UnknownPaginationMode(route, mode string) *SiteError {
	return New(CategoryPagination, SeverityFatal, "unknown pagination mode").
		WithContext("route", route).
		WithContext("paginate", mode)
}

// UnknownCategory indicates a pagination request for a category that does not exist.
func UnknownCategory(name string) *SiteError {
	return New(CategoryPagination, SeverityFatal, "pagination category does not exist").
		WithContext("category", name)
}

// InvalidPerPage indicates a missing, non-integer or non-positive perpage value.
func InvalidPerPage(route string, value any) *SiteError {
	return New(CategoryPagination, SeverityFatal, "invalid perpage value").
		WithContext("route", route).
		WithContext("perpage", value)
}

// InvalidPageNumber indicates a current page outside [1, total].
func InvalidPageNumber(current string, total int) *SiteError {
	return New(CategoryPagination, SeverityFatal, "invalid current page").
		WithContext("current", current).
		WithContext("total", total)
}

// Config errors

// ConfigNotFound indicates a missing configuration file.
func ConfigNotFound(path string) *SiteError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

// ValidationFailed indicates a configuration value that failed validation.
func ValidationFailed(field, reason string) *SiteError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}
