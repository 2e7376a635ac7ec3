package gwhttp

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

type GWHttp struct {
	r    *gin.Engine
	pool sync.Pool
}

func New() *GWHttp {
	gin.SetMode(gin.ReleaseMode)
	return newWithEngine(gin.New())
}

// NewWithLogger installs loggerHandler ahead of gin's recovery middleware.
func NewWithLogger(loggerHandler HandlerFunc) *GWHttp {
	gin.SetMode(gin.ReleaseMode)
	l := newWithEngine(gin.New())
	l.r.Use(l.handlerFunc(loggerHandler))
	l.r.Use(gin.Recovery())
	return l
}

func newWithEngine(r *gin.Engine) *GWHttp {
	l := &GWHttp{r: r}
	_ = l.r.SetTrustedProxies(nil)
	l.pool.New = func() interface{} {
		return &Context{}
	}
	return l
}

func (l *GWHttp) GetGinRoute() *gin.Engine {
	return l.r
}

type Context struct {
	*gin.Context
}

func (c *Context) reset() {
	c.Context = nil
}

// ResponseError writes {"error": msg} with status 400.
func (c *Context) ResponseError(err error) {
	c.ResponseErrorWithStatus(http.StatusBadRequest, err)
}

func (c *Context) ResponseErrorWithStatus(status int, err error) {
	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func (c *Context) ResponseOK() {
	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
	})
}

// ResponseOKWithData writes data as the whole body.
func (c *Context) ResponseOKWithData(data interface{}) {
	c.JSON(http.StatusOK, data)
}

type HandlerFunc func(c *Context)

func (l *GWHttp) handlerFunc(handlerFunc HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		hc := l.pool.Get().(*Context)
		hc.reset()
		hc.Context = c
		handlerFunc(hc)
		hc.reset()
		l.pool.Put(hc)
	}
}

func (l *GWHttp) handlersToGinHandleFunc(handlers []HandlerFunc) []gin.HandlerFunc {
	newHandlers := make([]gin.HandlerFunc, 0, len(handlers))
	for _, handler := range handlers {
		newHandlers = append(newHandlers, l.handlerFunc(handler))
	}
	return newHandlers
}

func (l *GWHttp) Use(handlers ...HandlerFunc) {
	l.r.Use(l.handlersToGinHandleFunc(handlers)...)
}

func (l *GWHttp) GET(relativePath string, handlers ...HandlerFunc) {
	l.r.GET(relativePath, l.handlersToGinHandleFunc(handlers)...)
}

func (l *GWHttp) POST(relativePath string, handlers ...HandlerFunc) {
	l.r.POST(relativePath, l.handlersToGinHandleFunc(handlers)...)
}

func (l *GWHttp) DELETE(relativePath string, handlers ...HandlerFunc) {
	l.r.DELETE(relativePath, l.handlersToGinHandleFunc(handlers)...)
}

// Handle mounts a plain http.Handler, e.g. promhttp.
func (l *GWHttp) Handle(method, relativePath string, h http.Handler) {
	l.r.Handle(method, relativePath, gin.WrapH(h))
}

func (l *GWHttp) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	l.r.ServeHTTP(w, req)
}

func (l *GWHttp) Run(addr ...string) error {
	return l.r.Run(addr...)
}
