package cluster

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/client-go/kubernetes"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/cuemby/solo/pkg/log"
)

const (
	// DefaultRemoteTimeout bounds a single exec or copy into a pod
	DefaultRemoteTimeout = 2 * time.Minute
	// DefaultPollInterval is the pod wait polling interval
	DefaultPollInterval = 2 * time.Second
)

// executorFactory opens an exec stream to the given URL
type executorFactory func(config *rest.Config, method string, u *url.URL) (remotecommand.Executor, error)

// Client talks to the Kubernetes API for pod queries, waits and file
// operations inside pods
type Client struct {
	clientset     kubernetes.Interface
	config        *rest.Config
	restClient    rest.Interface
	newExecutor   executorFactory
	remoteTimeout time.Duration
	pollInterval  time.Duration
	logger        zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithRemoteTimeout bounds every exec and copy
func WithRemoteTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.remoteTimeout = timeout
		}
	}
}

// WithPollInterval sets the pod wait polling interval
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// LoadConfig builds a REST config from kubeconfig and kubeContext, falling
// back to the default loading rules (KUBECONFIG, ~/.kube/config) and then to
// the in-cluster config
func LoadConfig(kubeconfig, kubeContext string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err == nil {
		return config, nil
	}

	if kubeconfig == "" && kubeContext == "" {
		if inCluster, icErr := rest.InClusterConfig(); icErr == nil {
			return inCluster, nil
		}
	}
	return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
}

// NewClient creates a client for the cluster selected by kubeconfig and kubeContext
func NewClient(kubeconfig, kubeContext string, opts ...Option) (*Client, error) {
	config, err := LoadConfig(kubeconfig, kubeContext)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}

	return NewForClientset(clientset, config, opts...)
}

// NewForClientset wraps an existing clientset. config may be nil, in which
// case exec and copy operations are unavailable.
func NewForClientset(clientset kubernetes.Interface, config *rest.Config, opts ...Option) (*Client, error) {
	c := &Client{
		clientset:     clientset,
		config:        config,
		newExecutor:   spdyExecutor,
		remoteTimeout: DefaultRemoteTimeout,
		pollInterval:  DefaultPollInterval,
		logger:        log.WithComponent("cluster"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if config != nil {
		core, err := corev1client.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create core REST client: %w", err)
		}
		c.restClient = core.RESTClient()
	}
	return c, nil
}

// Clientset returns the underlying clientset
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// APIAddress returns the host:port of the API server, or "" if unknown
func (c *Client) APIAddress() string {
	if c.config == nil || c.config.Host == "" {
		return ""
	}

	u, err := url.Parse(c.config.Host)
	if err != nil || u.Host == "" {
		return c.config.Host
	}
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "http" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return net.JoinHostPort(u.Hostname(), "443")
}

func spdyExecutor(config *rest.Config, method string, u *url.URL) (remotecommand.Executor, error) {
	return remotecommand.NewSPDYExecutor(config, method, u)
}
