//
// libkb is the client side of kasblog: article encryption, wallet-bound key derivation,
// shareable links and the short-URL service client.
//

// Create a service
//
//	wallet := libkb.NewMemoryWallet("kaspa:qz0c...", secret) // or any libkb.Wallet
//
//	shorturl, err := libkb.NewDefaultShortURLClient("https://short.kasblog.lan", "https://kasblog.lan", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	service := libkb.NewService(libkb.Config{
//		Store:    libkb.NewMemoryStore(),
//		Wallet:   wallet,
//		ShortURL: shorturl,
//		Origin:   "https://kasblog.lan",
//	})
//
// Publish a public article
//
//	result, err := service.Publish(ctx, &libkb.Article{
//		Title:    "Hello",
//		Content:  "# Hello\n\nFirst post.",
//		IsPublic: true,
//	}, libkb.PublishSign)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Share it
//
//	links, err := service.Share(ctx, result.Article.ID)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println("Short URL:", links.ShortURL) // needs the short-URL service
//	fmt.Println("Full URL:", links.FullURL)   // self-contained
//
// Open a link
//
//	article, err := service.Open(ctx, links.ShortURL)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(article.Title)
//
// Private articles are encrypted with a key derived from a wallet signature, they can only
// be read while the publishing wallet is connected.
package libkb
