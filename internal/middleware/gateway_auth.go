package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the gateway's HMAC of the request
const SignatureHeader = "X-Gateway-Signature"

// ValidateGatewaySignature checks that a USSD callback was signed by the
// gateway with the shared secret. The signature is base64(HMAC-SHA256)
// over the full URL followed by every form key and value, sorted by key.
func ValidateGatewaySignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signature := c.Get(SignatureHeader)
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).SendString("END Unauthorized request.")
		}

		formParams := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			formParams[string(key)] = string(value)
		})

		expected := CalculateSignature(secret, getFullURL(c), formParams)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			return c.Status(fiber.StatusUnauthorized).SendString("END Unauthorized request.")
		}

		return c.Next()
	}
}

// getFullURL constructs the full URL for the request
func getFullURL(c *fiber.Ctx) string {
	protocol := "https"
	if c.Protocol() == "http" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s%s", protocol, c.Hostname(), c.Path())
}

// CalculateSignature computes the expected gateway signature
func CalculateSignature(secret, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	data.WriteString(url)
	for _, k := range keys {
		data.WriteString(k)
		data.WriteString(params[k])
	}

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
