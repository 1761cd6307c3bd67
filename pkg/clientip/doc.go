// Package clientip extracts real client IP addresses from HTTP requests.
//
// The package checks proxy headers in priority order, so the most reliable
// sources win:
//  1. CF-Connecting-IP (Cloudflare)
//  2. DO-Connecting-IP (DigitalOcean)
//  3. X-Forwarded-For (leftmost entry is the original client)
//  4. X-Real-IP (nginx and other proxies)
//  5. RemoteAddr (direct connection)
//
// Every candidate is validated with net.ParseIP and normalized; invalid
// values and the unspecified address (0.0.0.0, ::) are skipped. GetIP never
// fails: when nothing valid is found it returns the raw RemoteAddr.
//
// Usage:
//
//	func handleRequest(w http.ResponseWriter, r *http.Request) {
//		ip := clientip.GetIP(r)
//		logger.Info("request", "client_ip", ip)
//	}
//
// When deploying behind proxies, ensure they set the appropriate headers:
//   - Nginx: proxy_set_header X-Real-IP $remote_addr;
//   - Cloudflare: automatically sets CF-Connecting-IP
//   - DigitalOcean Load Balancer: automatically sets DO-Connecting-IP
package clientip
