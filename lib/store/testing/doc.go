// Package testing provides a standardised test suite for storage backends
// that satisfy the store.IAdapter interface.
//
// Every adapter shipped with kvuri runs this suite, and third-party adapter
// packages are encouraged to do the same.
//
// Example usage:
//
//	func Test(t *testing.T) {
//		storetesting.RunAdapterTests(t, "MyAdapter", func(t *testing.T) store.IAdapter {
//			return NewMyAdapter()
//		})
//	}
//
// Backends whose notion of time can be driven by the test (for example an
// in-process redis server) pass WithAdvance so the expiry tests do not sleep.
package testing
