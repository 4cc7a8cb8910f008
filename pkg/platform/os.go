// SPDX-License-Identifier: MPL-2.0

package platform

// GOOS and GOARCH values recognised by host detection.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"

	goarchAMD64 = "amd64"
	goarchARM64 = "arm64"
)

// Supported OS families and architectures.
const (
	OSMacOS OSFamily = "macos"
	OSLinux OSFamily = "linux"

	ArchARM64  Arch = "arm64"
	ArchX86_64 Arch = "x86_64"
)

// Compiler families named by fails_with rules and compiler predicates.
const (
	CompilerClang     CompilerFamily = "clang"
	CompilerLLVMClang CompilerFamily = "llvm_clang"
	CompilerGCC       CompilerFamily = "gcc"
)

// OSFamilyFromGOOS maps a runtime.GOOS value to an OSFamily.
func OSFamilyFromGOOS(goos string) (OSFamily, bool) {
	switch goos {
	case Darwin:
		return OSMacOS, true
	case Linux:
		return OSLinux, true
	default:
		return "", false
	}
}

// ArchFromGOARCH maps a runtime.GOARCH value to an Arch.
func ArchFromGOARCH(goarch string) (Arch, bool) {
	switch goarch {
	case goarchAMD64:
		return ArchX86_64, true
	case goarchARM64:
		return ArchARM64, true
	default:
		return "", false
	}
}
