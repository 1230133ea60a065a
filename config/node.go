package config

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
)

// Node is a monerod endpoint p2pool connects to.
type Node struct {
	Name string `yaml:"name"`
	IP   string `yaml:"ip"`
	RPC  int    `yaml:"rpc"`
	ZMQ  int    `yaml:"zmq"`
}

func (n Node) String() string {
	return fmt.Sprintf("%s (%s:%d, zmq %d)", n.Name, n.IP, n.RPC, n.ZMQ)
}

func communityNode(host string, rpc int) Node {
	return Node{Name: host, IP: host, RPC: rpc, ZMQ: 18083}
}

// CommunityNodes are public nodes known to expose ZMQ, in no particular order.
// Ranking them by latency is done elsewhere.
var CommunityNodes = []Node{
	communityNode("node.c3pool.com", 18081),
	communityNode("xmr-node.cakewallet.com", 18081),
	communityNode("xmr-node-eu.cakewallet.com", 18081),
	communityNode("xmr-node-uk.cakewallet.com", 18081),
	communityNode("xmr-node-usa-east.cakewallet.com", 18081),
	communityNode("selsta1.featherwallet.net", 18081),
	communityNode("selsta2.featherwallet.net", 18081),
	communityNode("node.majesticbank.is", 18089),
	communityNode("node.majesticbank.su", 18089),
	communityNode("nodex.monerujo.io", 18081),
	communityNode("node.community.rino.io", 18081),
	communityNode("node.sethforprivacy.com", 18089),
	communityNode("node.supportxmr.com", 18081),
	communityNode("node.supportxmr.ir", 18081),
	communityNode("singapore.node.xmr.pm", 18089),
	communityNode("p2pmd.xmrvsbeast.com", 18081),
}

func DefaultNodes() []Node {
	return []Node{{Name: "Local Monero Node", IP: "localhost", RPC: 18081, ZMQ: 18083}}
}

func DefaultPools() []Pool {
	return []Pool{{Name: "Local P2Pool", IP: "localhost", Port: 3333}}
}

// LoadNodes reads the user's node list, a missing file is created with defaults.
func LoadNodes(path string) ([]Node, error) {
	return loadList(path, DefaultNodes)
}

func SaveNodes(path string, nodes []Node) error {
	return saveYaml(path, nodes)
}

// LoadPools reads the user's pool list, a missing file is created with defaults.
func LoadPools(path string) ([]Pool, error) {
	return loadList(path, DefaultPools)
}

func SavePools(path string, pools []Pool) error {
	return saveYaml(path, pools)
}

func loadList[T any](path string, defaults func() []T) ([]T, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		list := defaults()
		return list, saveYaml(path, list)
	} else if err != nil {
		return nil, err
	}

	var list []T
	if err = yaml.Unmarshal(buf, &list); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return list, nil
}
