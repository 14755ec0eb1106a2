package contact

import "errors"

// Sentinel errors for the mapping and import pipeline.
var (
	// ErrClassifierUnavailable is returned when the classifier is not
	// configured, cannot be reached, or did not answer before the deadline.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrMalformedResponse is returned when classifier output cannot be
	// parsed into a mapping result. Retrying the same request is safe.
	ErrMalformedResponse = errors.New("malformed classifier response")

	// ErrUnknownHeader is returned by reconciler operations on a header that
	// is not part of the mapping.
	ErrUnknownHeader = errors.New("unknown header")

	// ErrEmptyLabel is returned when a new custom field label is blank.
	ErrEmptyLabel = errors.New("empty field label")

	// ErrInvalidTarget is returned for a target that does not parse or
	// references a core attribute that does not exist.
	ErrInvalidTarget = errors.New("invalid mapping target")

	// ErrInvalidHeaders is returned for header lists with blank or
	// duplicate entries.
	ErrInvalidHeaders = errors.New("invalid headers")

	// ErrInvalidMapping is returned when a mapping handed to the importer
	// fails structural validation.
	ErrInvalidMapping = errors.New("invalid mapping")

	// ErrFieldMaterialization is returned when a proposed custom field could
	// not be created. It is fatal to the whole import run.
	ErrFieldMaterialization = errors.New("custom field materialization failed")

	// ErrDuplicateTarget is returned when two headers resolve to the same
	// target and the import is configured to reject that.
	ErrDuplicateTarget = errors.New("multiple headers mapped to the same target")

	// ErrRowRejected marks a row that failed the validation policy.
	ErrRowRejected = errors.New("row rejected")

	// ErrNotFound is returned by stores for missing documents.
	ErrNotFound = errors.New("not found")
)
