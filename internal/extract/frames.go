package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Frame is one resolved stack-trace location.
type Frame struct {
	File     string
	Line     int
	Function string
}

// Matches both JVM-style "at pkg.Cls.method(File.java:12)" and
// plain "path/file.go:123" locations.
var (
	jvmFramePattern  = regexp.MustCompile(`at\s+([\w.$<>]+)\(([\w./$-]+):(\d+)\)`)
	pathFramePattern = regexp.MustCompile(`([\w./-]+\.[A-Za-z]{1,5}):(\d+)`)
)

// Frames parses a free-form stack trace into ordered frames, outermost call
// last. Unparseable lines are skipped.
func Frames(stackTrace string) []Frame {
	if strings.TrimSpace(stackTrace) == "" {
		return nil
	}

	frames := make([]Frame, 0, 8)
	for _, line := range strings.Split(stackTrace, "\n") {
		if m := jvmFramePattern.FindStringSubmatch(line); m != nil {
			lineNo, err := strconv.Atoi(m[3])
			if err != nil {
				continue
			}
			frames = append(frames, Frame{Function: m[1], File: m[2], Line: lineNo})
			continue
		}
		if m := pathFramePattern.FindStringSubmatch(line); m != nil {
			lineNo, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			frames = append(frames, Frame{File: m[1], Line: lineNo})
		}
	}
	return frames
}

// TopFrame returns the innermost frame, preferring the first frame whose file
// matches the event's reported file when one is present.
func TopFrame(stackTrace, preferredFile string) (Frame, bool) {
	frames := Frames(stackTrace)
	if len(frames) == 0 {
		return Frame{}, false
	}
	if preferredFile != "" {
		for _, frame := range frames {
			if strings.HasSuffix(frame.File, preferredFile) || strings.HasSuffix(preferredFile, frame.File) {
				return frame, true
			}
		}
	}
	return frames[0], true
}
