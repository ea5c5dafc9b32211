package service

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/mssola/useragent"
	"github.com/threaded-comments-api/internal/models"
)

var qqMailPattern = regexp.MustCompile(`^(\d+)@qq\.com$`)

// Avatar returns the avatar url shown next to an email address
func Avatar(email string) string {
	if m := qqMailPattern.FindStringSubmatch(email); m != nil {
		return fmt.Sprintf("https://q1.qlogo.cn/g?b=qq&nk=%s&s=100", m[1])
	}
	return fmt.Sprintf("https://api.multiavatar.com/%s.png", MailMD5(email))
}

// MailMD5 hashes the lowercased, trimmed email
func MailMD5(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// parseUserAgent splits a user agent into browser and operating system labels
func parseUserAgent(ua string) (string, string) {
	if ua == "" {
		return "", ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	browser := strings.TrimSpace(name + " " + version)
	return browser, parsed.OS()
}

// commentView renders c, keeping mail and ip only for administrators
func commentView(c *models.Comment, admin bool) models.CommentView {
	browser, os := parseUserAgent(c.UserAgent)
	v := models.CommentView{
		ObjectID: c.ID,
		Status:   c.Status,
		Like:     c.Like,
		Sticky:   c.Sticky,
		Link:     c.Link,
		Nick:     c.Nick,
		UserID:   c.UserID,
		Browser:  browser,
		OS:       os,
		Orig:     c.Content,
		Comment:  c.Content,
		URL:      c.URL,
		PID:      c.ParentID,
		RID:      c.ReplyToID,
		Time:     c.CreatedAt.UnixMilli(),
		Avatar:   Avatar(c.Mail),
		Children: []models.CommentView{},
	}
	if admin {
		v.Mail = c.Mail
		v.IP = c.IP
	}
	return v
}

// withUser attaches the author's account label and type
func withUser(v *models.CommentView, u *models.User) {
	if u == nil {
		return
	}
	v.Label = u.Label
	v.Type = u.Type
	v.Avatar = Avatar(u.Email)
}

func userProfile(u *models.User) models.UserProfile {
	avatar := u.Avatar
	if avatar == "" {
		avatar = Avatar(u.Email)
	}
	return models.UserProfile{
		ObjectID:    u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Type:        u.Type,
		Label:       u.Label,
		URL:         u.URL,
		Avatar:      avatar,
		MailMD5:     MailMD5(u.Email),
	}
}
