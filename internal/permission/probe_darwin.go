//go:build darwin

package permission

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>

bool clipd_ax_trusted() {
    return AXIsProcessTrusted();
}

bool clipd_ax_request() {
    const void *keys[] = { kAXTrustedCheckOptionPrompt };
    const void *values[] = { kCFBooleanTrue };
    CFDictionaryRef options = CFDictionaryCreate(kCFAllocatorDefault,
        keys,
        values,
        1,
        &kCFTypeDictionaryKeyCallBacks,
        &kCFTypeDictionaryValueCallBacks);
    bool trusted = AXIsProcessTrustedWithOptions(options);
    CFRelease(options);
    return trusted;
}
*/
import "C"

// axProbe is the macOS accessibility trust check.
type axProbe struct{}

// SystemProbe returns the platform permission probe.
func SystemProbe() Probe {
	return axProbe{}
}

func (axProbe) Granted() bool {
	return bool(C.clipd_ax_trusted())
}

func (axProbe) Request() {
	C.clipd_ax_request()
}
