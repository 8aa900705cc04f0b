package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// IPWhitelist only admits clients whose IP matches one of entries, each a
// plain address or a CIDR prefix. Unparseable entries are ignored; an empty
// list admits everyone.
func IPWhitelist(entries []string) gin.HandlerFunc {
	var prefixes []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
		}
	}
	return func(c *gin.Context) {
		if len(entries) == 0 {
			c.Next()
			return
		}
		addr, err := netip.ParseAddr(c.ClientIP())
		if err == nil {
			addr = addr.Unmap()
			for _, p := range prefixes {
				if p.Contains(addr) {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}
