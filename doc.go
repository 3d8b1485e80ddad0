// Package gdtcpus discovers the CPU topology of the host machine and
// applies thread-level scheduling hints (core affinity and priority).
//
// Detection runs once, lazily, on the first call to [Info]; the result
// (or the failure) is cached for the lifetime of the process. The
// returned topology is read-only and safe to share between goroutines.
//
// Thread-control calls act on the calling OS thread. Callers must hold
// the thread with [runtime.LockOSThread] for the hints to stay attached
// to their goroutine. Where an operating system forbids an operation —
// thread affinity on ARM macOS — the library refuses with
// [ErrUnsupported] instead of pretending. On x86 macOS affinity is
// installed as a placement hint the kernel may ignore.
package gdtcpus
