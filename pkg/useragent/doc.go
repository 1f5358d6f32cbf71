// Package useragent provides coarse User-Agent detection for device identity.
//
// It extracts browser, platform, and device classification plus bot markers
// from a raw User-Agent string:
//
//	info, err := useragent.Detect(r.Header.Get("User-Agent"))
//	if err != nil {
//		// empty header; treat as unknown device
//	}
//	if info.Bot {
//		// bot traffic
//	}
//
// Detection uses keyword matching with fast-path bot lookup, taking
// microseconds per call. It aims at stable identity signals rather than
// exhaustive UA taxonomy.
package useragent
