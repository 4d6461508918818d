package server_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/appleboy/gofight"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func TestRequestShareCreate(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")

	r.POST("/api/share").SetHeader(authHeader()).SetJSON(gofight.D{"itemId": id}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusCreated, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		token := string(v.GetStringBytes("token"))
		assert.Len(t, token, 24)
		assert.Equal(t, "/s/?token="+token, string(v.GetStringBytes("url")))
		assert.False(t, v.GetBool("requiresPassword"))
	})

	r.POST("/api/share").SetHeader(authHeader()).SetJSON(gofight.D{"itemId": "unknown"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found","message":"Item not found."}}`, r.Body.String())
	})

	r.POST("/api/share").SetHeader(authHeader()).SetJSON(gofight.D{"itemId": id, "maxDownloads": -1}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"bad-request","message":"maxDownloads must not be negative."}}`, r.Body.String())
	})

	r.POST("/api/share").SetHeader(authHeader()).SetJSON(gofight.D{"itemId": id, "expiresAt": "not a date"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusBadRequest, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"bad-request","message":"Malformed expiresAt."}}`, r.Body.String())
	})
}

func TestRequestShareMeta(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")
	token := createShare(t, engine, r, gofight.D{"itemId": id})

	// No password: anyone holding the token is authorized, text included.
	r.GET("/api/share/"+token).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		assert.Equal(t, token, string(v.GetStringBytes("token")))
		assert.True(t, v.GetBool("authorized"))
		assert.False(t, v.GetBool("requiresPassword"))
		assert.Equal(t, "hello", string(v.GetStringBytes("item", "content")))
		assert.Equal(t, "TEXT", string(v.GetStringBytes("item", "type")))
	})

	r.GET("/api/share/no-such-token").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found","message":"Share link not found."}}`, r.Body.String())
	})
}

func TestRequestShareDownloadQuota(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")
	token := createShare(t, engine, r, gofight.D{"itemId": id, "maxDownloads": 1})

	r.GET("/api/share/"+token+"/download").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "hello", r.Body.String())
		assert.Contains(t, r.HeaderMap.Get("Content-Disposition"), "attachment")
	})

	// The quota is spent; the link now looks like it never existed.
	r.GET("/api/share/"+token+"/download").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found","message":"Share link not found."}}`, r.Body.String())
	})

	r.GET("/api/share/"+token).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})
}

func TestRequestShareFileDoesNotCount(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")
	token := createShare(t, engine, r, gofight.D{"itemId": id, "maxDownloads": 1})

	// Viewing is free, only downloads consume the quota.
	for i := 0; i < 3; i++ {
		r.GET("/api/share/"+token+"/file").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.Equal(t, "hello", r.Body.String())
		})
	}

	r.GET("/api/share/"+token+"/download").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
	})
}

func TestRequestSharePasswordFlow(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "secret text")
	token := createShare(t, engine, r, gofight.D{"itemId": id, "password": "sesame"})

	// Metadata is public but the content is withheld.
	r.GET("/api/share/"+token).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		assert.True(t, v.GetBool("requiresPassword"))
		assert.False(t, v.GetBool("authorized"))
		assert.Nil(t, v.Get("item", "content"))
	})

	r.GET("/api/share/"+token+"/file").Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"unauthorized","message":"Share password required."}}`, r.Body.String())
	})

	r.POST("/api/share/"+token+"/verify").SetJSON(gofight.D{"password": "wrong"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"unauthorized","message":"Invalid share password."}}`, r.Body.String())
	})

	var credential string
	r.POST("/api/share/"+token+"/verify").SetJSON(gofight.D{"password": "sesame"}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"success":true}`, r.Body.String())
		credential = cookieValue(r, "share_auth_"+token)
		assert.NotEmpty(t, credential)
	})

	cookie := gofight.H{"share_auth_" + token: credential}
	r.GET("/api/share/"+token+"/file").SetCookie(cookie).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.Equal(t, "secret text", r.Body.String())
	})

	r.GET("/api/share/"+token).SetCookie(cookie).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		assert.True(t, v.GetBool("authorized"))
		assert.Equal(t, "secret text", string(v.GetStringBytes("item", "content")))
	})

	// The credential opens this link only.
	other := createShare(t, engine, r, gofight.D{"itemId": id, "password": "sesame"})
	r.GET("/api/share/"+other+"/file").SetCookie(gofight.H{"share_auth_" + other: credential}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusUnauthorized, r.Code)
	})
}

func TestRequestShareExpired(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")
	expiry := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	token := createShare(t, engine, r, gofight.D{"itemId": id, "expiresAt": expiry})

	// Expired links are indistinguishable from nonexistent ones.
	r.GET("/api/share/"+token).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
		assert.JSONEq(t, `{"error":{"tag":"not-found","message":"Share link not found."}}`, r.Body.String())
	})
}

func TestRequestShareRevoke(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")
	token := createShare(t, engine, r, gofight.D{"itemId": id})

	r.POST("/api/share/"+token+"/revoke").SetHeader(authHeader()).SetJSON(gofight.D{}).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"ok":true}`, r.Body.String())
	})

	r.GET("/api/share/"+token).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusNotFound, r.Code)
	})

	// The management listing still sees it.
	r.GET("/api/share?includeInvalid=1").SetHeader(authHeader()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		links := v.GetArray("data")
		require.Len(t, links, 1)
		assert.Equal(t, token, string(links[0].GetStringBytes("token")))
		assert.True(t, links[0].GetBool("revoked"))
		assert.False(t, links[0].GetBool("valid"))
	})

	// Without the flag the dead link is filtered out.
	r.GET("/api/share").SetHeader(authHeader()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		assert.Len(t, v.GetArray("data"), 0)
	})
}

func TestRequestShareList(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	first := createText(t, engine, r, "first")
	second := createText(t, engine, r, "second")
	tokenFirst := createShare(t, engine, r, gofight.D{"itemId": first})
	createShare(t, engine, r, gofight.D{"itemId": second})

	r.GET("/api/share").SetHeader(authHeader()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		assert.Len(t, v.GetArray("data"), 2)
		assert.Equal(t, int64(1), v.GetInt64("page"))
		assert.Equal(t, int64(20), v.GetInt64("pageSize"))
		assert.False(t, v.GetBool("hasMore"))
	})

	// Filter by item.
	r.GET("/api/share?itemId="+first).SetHeader(authHeader()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		links := v.GetArray("data")
		require.Len(t, links, 1)
		assert.Equal(t, tokenFirst, string(links[0].GetStringBytes("token")))
		assert.Equal(t, first, string(links[0].GetStringBytes("item", "id")))
	})
}

func TestRequestShareDelete(t *testing.T) {
	engine, _, r, cleanup := setup()
	defer cleanup()

	id := createText(t, engine, r, "hello")
	token := createShare(t, engine, r, gofight.D{"itemId": id})

	r.DELETE("/api/share/"+token).SetHeader(authHeader()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		assert.Equal(t, http.StatusOK, r.Code)
		assert.JSONEq(t, `{"ok":true}`, r.Body.String())
	})

	r.GET("/api/share?includeInvalid=1").SetHeader(authHeader()).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		v, err := fastjson.Parse(r.Body.String())
		assert.NoError(t, err)
		assert.Len(t, v.GetArray("data"), 0)
	})
}

// createShare registers a link through the management API and returns its
// token.
func createShare(t *testing.T, engine *echo.Echo, r *gofight.RequestConfig, params gofight.D) (token string) {
	r.POST("/api/share").SetHeader(authHeader()).SetJSON(params).Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
		require.Equal(t, http.StatusCreated, r.Code)

		v, err := fastjson.Parse(r.Body.String())
		require.NoError(t, err)
		token = string(v.GetStringBytes("token"))
	})
	require.NotEmpty(t, token)
	return token
}
