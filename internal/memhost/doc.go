// Package memhost is an in-memory browser that implements both config.Host and
// config.Guest.
//
// Pages post messages to each other through Window handles with browser semantics:
// delivery is asynchronous and FIFO per listener, a targetOrigin that does not match
// the receiver drops the message, closed pages receive nothing, and the receiver sees
// the sender's origin as reported by the browser together with its own handle to the
// sender. Sites registered with Browser.Handle run when a page loads a URL on their
// origin, which is where a guest boots its Client.
//
//	browser := memhost.NewBrowser()
//	browser.Handle("https://guest.example", func(page *memhost.Page) {
//	    client, _ := siteos.NewClient(page)
//	    _ = client.Start(ctx)
//	})
//	host := browser.Open("https://host.example/")
//	ctrl, _ := siteos.NewController(host, "https://guest.example/app")
package memhost
