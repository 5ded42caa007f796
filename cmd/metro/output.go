package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/blackmichael/metro/internal/bluesky"
	"github.com/blackmichael/metro/internal/domain"
)

func printFeed(items []bluesky.FeedItem, cursor string) {
	for _, item := range items {
		header := ""
		if item.Reason != nil && item.Reason.IsRepost() && item.Reason.By != nil {
			header = "reposted by @" + item.Reason.By.Handle
		}
		if item.Reply != nil && item.Reply.Parent.Post != nil {
			parent := item.Reply.Parent.Post.View()
			if header != "" {
				header += ", "
			}
			header += "replying to @" + parent.Author.Handle
		}
		printPost(item.Post.View(), header)
	}
	if cursor != "" {
		fmt.Printf("-- more: --cursor %s\n", cursor)
	}
}

func printPost(p domain.PostView, header string) {
	if header != "" {
		fmt.Printf("  (%s)\n", header)
	}
	fmt.Printf("%s @%s · %s\n", p.Author.Name(), p.Author.Handle, age(p.Record.CreatedAt))
	for _, line := range strings.Split(p.Record.Text, "\n") {
		fmt.Printf("  %s\n", line)
	}
	if p.Embed != nil {
		fmt.Printf("  [%s]\n", describeEmbed(p.Embed))
	}

	liked, reposted := "", ""
	if p.Viewer.Liked() {
		liked = "*"
	}
	if p.Viewer.Reposted() {
		reposted = "*"
	}
	fmt.Printf("  %d replies  %d%s reposts  %d%s likes  %s\n\n",
		p.ReplyCount, p.RepostCount, reposted, p.LikeCount, liked, p.URI)
}

func describeEmbed(e *domain.Embed) string {
	switch e.Type {
	case domain.EmbedImagesView:
		return fmt.Sprintf("%d image(s)", len(e.Images))
	case domain.EmbedVideoView:
		return "video"
	case domain.EmbedExternalView:
		if e.External != nil {
			return "link: " + e.External.URI
		}
	case domain.EmbedRecordView:
		if e.Record != nil {
			return "quote: " + e.Record.URI
		}
	case domain.EmbedRecordWithMediaView:
		s := "quote"
		if e.Record != nil {
			s += ": " + e.Record.URI
		}
		if e.Media != nil {
			s += " + " + describeEmbed(e.Media)
		}
		return s
	}
	return e.Type
}

func printThread(t *bluesky.Thread) {
	for _, n := range t.Ancestors() {
		printNode(n, 0)
	}
	if anchor := t.Node(t.Anchor); anchor != nil {
		printNode(anchor, 0)
		printReplies(t, anchor, 1)
	}
}

func printReplies(t *bluesky.Thread, parent *bluesky.ThreadNode, depth int) {
	for _, uri := range parent.Replies {
		n := t.Node(uri)
		if n == nil {
			continue
		}
		printNode(n, depth)
		printReplies(t, n, depth+1)
	}
}

func printNode(n *bluesky.ThreadNode, depth int) {
	indent := strings.Repeat("    ", depth)
	switch n.Status {
	case bluesky.NodeNotFound:
		fmt.Printf("%s[deleted post]\n\n", indent)
	case bluesky.NodeBlocked:
		fmt.Printf("%s[blocked post]\n\n", indent)
	default:
		p := n.Post.View()
		fmt.Printf("%s%s @%s · %s\n", indent, p.Author.Name(), p.Author.Handle, age(p.Record.CreatedAt))
		for _, line := range strings.Split(p.Record.Text, "\n") {
			fmt.Printf("%s  %s\n", indent, line)
		}
		fmt.Printf("%s  %d replies  %d reposts  %d likes\n\n", indent, p.ReplyCount, p.RepostCount, p.LikeCount)
	}
}

func printProfile(p *domain.ProfileViewDetailed) {
	name := p.DisplayName
	if name == "" {
		name = p.Handle
	}
	fmt.Printf("%s (@%s)\n%s\n", name, p.Handle, p.DID)
	if p.Description != "" {
		fmt.Printf("\n%s\n", p.Description)
	}
	fmt.Printf("\n%d followers  %d following  %d posts\n", p.FollowersCount, p.FollowsCount, p.PostsCount)
}

func age(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2, 2006")
	}
}
