// Package tac renders the buildbot.tac file a slave runs at boot.
//
// Key names and fixed values in the body are a contract with the slave
// runtime and must not change.
package tac

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/atvirokodosprendimai/slavealloc/internal/allocator"
)

const header = `# AUTOMATICALLY GENERATED - DO NOT MODIFY
# generated: {{.Generated}} on {{.Host}}
`

const enabledBody = `from twisted.application import service
from buildbot.slave.bot import BuildSlave
from twisted.python.logfile import LogFile
from twisted.python.log import ILogObserver, FileLogObserver

maxdelay = 300
buildmaster_host = {{py .MasterHost}}
passwd = {{py .Password}}
maxRotatedFiles = None
basedir = {{py .Basedir}}
umask = 002
slavename = {{py .SlaveName}}
usepty = 0
rotateLength = 1000000
port = {{.MasterPort}}
keepalive = None

application = service.Application('buildslave')
logfile = LogFile.fromFullPath("twistd.log", rotateLength=rotateLength,
                             maxRotatedFiles=maxRotatedFiles)
application.setComponent(ILogObserver, FileLogObserver(logfile).emit)
s = BuildSlave(buildmaster_host, port, slavename, passwd, basedir,
               keepalive, usepty, umask=umask, maxdelay=maxdelay)
s.setServiceParent(application)
`

const disabledBody = `# SLAVE DISABLED
import sys
print "SLAVE DISABLED"
sys.exit(1)
`

var funcs = template.FuncMap{"py": pyString}

var (
	headerTmpl  = template.Must(template.New("header").Parse(header))
	enabledTmpl = template.Must(template.New("tac").Funcs(funcs).Parse(enabledBody))
)

// Data is what body templates, including per-master overrides, see.
type Data struct {
	SlaveName      string
	Basedir        string
	Password       string
	MasterNickname string
	MasterHost     string
	MasterPort     int
	MasterHTTPPort int
}

// Renderer turns allocations into tac text. Now and Host only feed the
// generation banner.
type Renderer struct {
	Now  func() time.Time
	Host string
}

// NewRenderer stamps output with the wall clock and this machine's hostname.
func NewRenderer() *Renderer {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Renderer{Now: time.Now, Host: host}
}

// Render produces the tac for alloc. Disabled allocations get a stub that
// refuses to start; others get the built-in body or the master's override.
func (r *Renderer) Render(alloc *allocator.Allocation) (string, error) {
	var b strings.Builder
	err := headerTmpl.Execute(&b, struct{ Generated, Host string }{
		Generated: r.Now().Format(time.ANSIC),
		Host:      r.Host,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render tac header: %w", err)
	}

	if alloc.Disabled() {
		b.WriteString(disabledBody)
		return b.String(), nil
	}

	body := enabledTmpl
	if alloc.TacTemplate != "" {
		body, err = ParseOverride(alloc.TacTemplate)
		if err != nil {
			return "", fmt.Errorf("master %s: %w", alloc.MasterNickname, err)
		}
	}

	data := Data{
		SlaveName:      alloc.SlaveName,
		Basedir:        alloc.Basedir,
		Password:       alloc.Password,
		MasterNickname: alloc.MasterNickname,
		MasterHost:     alloc.MasterFQDN,
		MasterPort:     alloc.MasterPBPort,
		MasterHTTPPort: alloc.MasterHTTPPort,
	}
	if err := body.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render tac for %s: %w", alloc.SlaveName, err)
	}
	return b.String(), nil
}

// ParseOverride compiles a per-master body template.
func ParseOverride(text string) (*template.Template, error) {
	tmpl, err := template.New("override").Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid tac template: %w", err)
	}
	return tmpl, nil
}

// pyString quotes s as a single-quoted Python 2 byte string literal.
// Bytes outside printable ASCII are escaped so the tac needs no coding
// declaration.
func pyString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}
