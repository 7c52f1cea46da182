package sshconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	avErrors "github.com/sudoblockio/ansible-vagrant/pkg/errors"
)

const singleMachine = `Host default
  HostName 127.0.0.1
  User vagrant
  Port 2222
  UserKnownHostsFile /dev/null
  StrictHostKeyChecking no
  PasswordAuthentication no
  IdentityFile /home/me/project/.vagrant/machines/default/virtualbox/private_key
  IdentitiesOnly yes
  LogLevel FATAL
`

const twoMachines = `Host web
  HostName 192.168.121.10
  User vagrant
  Port 22
  IdentityFile /keys/web

Host db
  HostName 192.168.121.11
  User vagrant
  Port 22
  IdentityFile /keys/db
  ForwardAgent yes
`

func TestParseSingleMachine(t *testing.T) {
	t.Parallel()

	d, err := Parse(singleMachine, "")
	require.NoError(t, err)
	require.Equal(t, "default", d.Name)
	require.Equal(t, "127.0.0.1", d.Host)
	require.Equal(t, 2222, d.Port)
	require.Equal(t, "vagrant", d.User)
	require.Equal(t, "/home/me/project/.vagrant/machines/default/virtualbox/private_key", d.IdentityFile)

	require.Equal(t, map[string]string{
		"UserKnownHostsFile":     "/dev/null",
		"StrictHostKeyChecking":  "no",
		"PasswordAuthentication": "no",
		"IdentitiesOnly":         "yes",
		"LogLevel":               "FATAL",
	}, d.Options())

	require.Equal(t, "127.0.0.1:2222", d.Address())
	require.Equal(t, "ssh://vagrant@127.0.0.1:2222", d.SSHURL())
}

func TestParseMissingRequiredKeys(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HostName":     "Host default\n  User vagrant\n  Port 22\n  IdentityFile /k\n",
		"Port":         "Host default\n  HostName h\n  User vagrant\n  IdentityFile /k\n",
		"User":         "Host default\n  HostName h\n  Port 22\n  IdentityFile /k\n",
		"IdentityFile": "Host default\n  HostName h\n  User vagrant\n  Port 22\n",
	}
	for missing, text := range cases {
		missing, text := missing, text
		t.Run(missing, func(t *testing.T) {
			t.Parallel()

			d, err := Parse(text, "")
			var parseErr *avErrors.ConnectionParseError
			require.ErrorAs(t, err, &parseErr)
			require.Contains(t, err.Error(), "ssh-config missing: "+missing)
			require.Equal(t, Descriptor{}, d)
		})
	}
}

func TestParseNamesAllMissingKeys(t *testing.T) {
	t.Parallel()

	_, err := Parse("Host default\n  LogLevel FATAL\n", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "HostName, Port, User, IdentityFile")
}

func TestParseInvalidPort(t *testing.T) {
	t.Parallel()

	for _, port := range []string{"abc", "0", "65536", "-1", "+22", "2 2", "0x16", "2_2"} {
		text := "Host default\n  HostName h\n  User u\n  Port " + port + "\n  IdentityFile /k\n"
		_, err := Parse(text, "")
		var parseErr *avErrors.ConnectionParseError
		require.ErrorAs(t, err, &parseErr, port)
		require.Contains(t, err.Error(), "invalid Port", port)
	}

	d, err := Parse("Host default\n  HostName h\n  User u\n  Port 65535\n  IdentityFile /k\n", "")
	require.NoError(t, err)
	require.Equal(t, 65535, d.Port)
}

func TestParseMultiMachineRequiresSelector(t *testing.T) {
	t.Parallel()

	_, err := Parse(twoMachines, "")
	var ambiguous *avErrors.AmbiguousMachineError
	require.ErrorAs(t, err, &ambiguous)
	require.Equal(t, []string{"web", "db"}, ambiguous.Machines)

	var parseErr *avErrors.ConnectionParseError
	require.ErrorAs(t, err, &parseErr)

	d, err := Parse(twoMachines, "db")
	require.NoError(t, err)
	require.Equal(t, "db", d.Name)
	require.Equal(t, "192.168.121.11", d.Host)
	require.Equal(t, "/keys/db", d.IdentityFile)
	require.Equal(t, map[string]string{"ForwardAgent": "yes"}, d.Options())
}

func TestParseUnknownMachine(t *testing.T) {
	t.Parallel()

	_, err := Parse(twoMachines, "cache")
	var notFound *avErrors.HostNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, []string{"web", "db"}, notFound.Available)

	var parseErr *avErrors.ConnectionParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseQuotedValuesAndEqualsForm(t *testing.T) {
	t.Parallel()

	text := `Host default
  HostName=127.0.0.1
  User "vagrant"
  Port = 2200
  IdentityFile "/Users/me/My Project/.vagrant/private_key"
  ProxyCommand 'ssh -W %h:%p bastion'
`
	d, err := Parse(text, "")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", d.Host)
	require.Equal(t, "vagrant", d.User)
	require.Equal(t, 2200, d.Port)
	require.Equal(t, "/Users/me/My Project/.vagrant/private_key", d.IdentityFile)

	proxy, ok := d.Option("ProxyCommand")
	require.True(t, ok)
	require.Equal(t, "ssh -W %h:%p bastion", proxy)
}

func TestParseAnonymousBlockAndFirstValueWins(t *testing.T) {
	t.Parallel()

	text := `# leading comment
HostName 10.0.0.5
HostName 10.0.0.6
User root
Port 22
IdentityFile /k
`
	d, err := Parse(text, "")
	require.NoError(t, err)
	require.Equal(t, "default", d.Name)
	require.Equal(t, "10.0.0.5", d.Host)
}

func TestParseRepeatedOptionsKeepEveryValue(t *testing.T) {
	t.Parallel()

	text := `Host default
  HostName 127.0.0.1
  User vagrant
  User root
  Port 2222
  IdentityFile /k
  LocalForward 8080 localhost:80
  LocalForward 8443 localhost:443
  LogLevel FATAL
`
	d, err := Parse(text, "")
	require.NoError(t, err)
	require.Equal(t, "vagrant", d.User)

	v, ok := d.Option("LocalForward")
	require.True(t, ok)
	require.Equal(t, []string{"8080 localhost:80", "8443 localhost:443"}, strings.Split(v, "\n"))
	v, _ = d.Option("LogLevel")
	require.Equal(t, "FATAL", v)
}

func TestParseKeysAreCaseSensitive(t *testing.T) {
	t.Parallel()

	text := "Host default\n  hostname lower\n  HostName upper\n  User u\n  Port 22\n  IdentityFile /k\n"
	d, err := Parse(text, "")
	require.NoError(t, err)
	require.Equal(t, "upper", d.Host)
	v, ok := d.Option("hostname")
	require.True(t, ok)
	require.Equal(t, "lower", v)
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   \n\n", "# only a comment\n"} {
		_, err := Parse(text, "")
		var parseErr *avErrors.ConnectionParseError
		require.ErrorAs(t, err, &parseErr)
		require.Contains(t, err.Error(), "no host blocks")
	}
}

func TestParseHostWithoutName(t *testing.T) {
	t.Parallel()

	_, err := Parse("Host\n  HostName h\n", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Host without a name")
}

func TestParseAll(t *testing.T) {
	t.Parallel()

	all, err := ParseAll(twoMachines)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "web", all[0].Name)
	require.Equal(t, "db", all[1].Name)

	_, err = ParseAll(twoMachines + "\nHost broken\n  HostName x\n")
	require.Error(t, err)
}

func TestDescriptorOptionsAreCopied(t *testing.T) {
	t.Parallel()

	d, err := Parse(singleMachine, "")
	require.NoError(t, err)

	opts := d.Options()
	opts["LogLevel"] = "DEBUG"
	opts["Injected"] = "x"

	v, _ := d.Option("LogLevel")
	require.Equal(t, "FATAL", v)
	_, ok := d.Option("Injected")
	require.False(t, ok)
}

func TestNewDescriptor(t *testing.T) {
	t.Parallel()

	src := map[string]string{"LogLevel": "FATAL"}
	d, err := NewDescriptor("web", "10.0.0.1", 22, "vagrant", "/k", src)
	require.NoError(t, err)
	src["LogLevel"] = "changed"
	v, _ := d.Option("LogLevel")
	require.Equal(t, "FATAL", v)
	require.Equal(t, "web (ssh://vagrant@10.0.0.1:22)", d.String())

	_, err = NewDescriptor("web", "10.0.0.1", 70000, "vagrant", "/k", nil)
	require.ErrorContains(t, err, "invalid Port")

	_, err = NewDescriptor("web", "", 22, "", "/k", nil)
	require.ErrorContains(t, err, "ssh-config missing: HostName, User")
}

func TestDescriptorIPv6Address(t *testing.T) {
	t.Parallel()

	d, err := NewDescriptor("v6", "::1", 2222, "vagrant", "/k", nil)
	require.NoError(t, err)
	require.Equal(t, "[::1]:2222", d.Address())
}

func TestDescriptorMarshalYAML(t *testing.T) {
	t.Parallel()

	d, err := Parse(twoMachines, "db")
	require.NoError(t, err)

	out, err := yaml.Marshal(d)
	require.NoError(t, err)
	text := string(out)
	require.True(t, strings.HasPrefix(text, "name: db\n"), text)
	require.Contains(t, text, "identity_file: /keys/db")
	require.Contains(t, text, "key: ForwardAgent")
}
