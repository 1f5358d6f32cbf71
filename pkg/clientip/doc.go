// Package clientip extracts real client IP addresses from HTTP requests
// behind proxies, load balancers, and CDNs.
//
// Headers are checked in priority order: CF-Connecting-IP (Cloudflare),
// DO-Connecting-IP (DigitalOcean), X-Forwarded-For, X-Real-IP, then
// RemoteAddr for direct connections. All candidates are validated with
// net.ParseIP; malformed headers are skipped silently.
//
//	ip := clientip.GetIP(r)
//	location, err := locator.Locate(ctx, ip)
package clientip
