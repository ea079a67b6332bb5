package face

// NullTransport discards every frame written to it. Used by this package's
// tests as a transport that needs no socket (spec.md §4.7, grounded on
// fw/face/null-transport.go).
type NullTransport struct {
	local, remote Address
}

// MakeNullTransport constructs a NullTransport.
func MakeNullTransport() *NullTransport {
	return &NullTransport{
		local:  Address{Family: FamilyLocal, Host: "null"},
		remote: Address{Family: FamilyLocal, Host: "null"},
	}
}

func (t *NullTransport) String() string    { return "null-transport" }
func (t *NullTransport) Write([]byte) error { return nil }
func (t *NullTransport) Close() error       { return nil }
func (t *NullTransport) Local() Address     { return t.local }
func (t *NullTransport) Remote() Address    { return t.remote }
func (t *NullTransport) IsLocal() bool      { return true }
