// Package rpcerror defines the status-code space carried by response envelopes
// and the errors that map to it.
//
// Code 0 means success. Codes with the top nibble 0xF belong to the library
// (protocol failures raised by a server), as does the client sub-range
// 0x00Fxxxxx (failures synthesized locally by a proxy). Everything else is
// free for services to assign.
package rpcerror

const (
	// CodeOK is the status of a successful response. It is never an error code.
	CodeOK uint32 = 0

	LibraryException       uint32 = 0xF0000000
	LibraryClientException uint32 = 0x00F00000

	libraryMask       uint32 = 0xF0000000
	libraryClientMask uint32 = 0xFFF00000
)

// Server side codes.
const (
	CodeUnhandled      = LibraryException
	CodeRequest        = LibraryException + 1
	CodeResponse       = LibraryException + 2
	CodeDispatch       = LibraryException + 3
	CodeRateLimited    = LibraryException + 4
	CodeHandlerTimeout = LibraryException + 5
)

// Client side codes.
const (
	CodeClientTimeout = LibraryClientException + 1
)

// IsReserved reports whether code is owned by the library and therefore
// unavailable to services.
func IsReserved(code uint32) bool {
	if code == CodeOK {
		return true
	}
	return code&libraryMask == LibraryException || code&libraryClientMask == LibraryClientException
}
