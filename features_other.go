//go:build !amd64 && !arm64

package gdtcpus

func archFeatures() Features { return 0 }

func archVendorModel() (vendor, model string) { return "", "" }

func archHybridHint() bool { return false }
