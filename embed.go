// Package root embeds the static assets of the payment gateway, the HTML
// templates of the payment notifications.
package root

import "embed"

// Assets holds the assets/mail directory.
//
//go:embed assets/mail/*.html
var Assets embed.FS
