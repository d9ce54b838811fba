package server

import (
	"fmt"
	"net/http"
)

// handleIndex serves the live view. The page draws edges as lines and nodes
// as dots on a canvas, redrawing on every frame received from /ws.
func handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexPage)
	}
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>sitegraph</title>
  <style>
    html, body { margin: 0; height: 100%; background: #111; color: #ccc; font-family: 'Helvetica Neue', Arial, sans-serif; }
    #bar { position: fixed; top: 0; left: 0; right: 0; padding: 6px 12px; font-size: 13px; background: rgba(0,0,0,0.6); }
    #bar button { margin-left: 12px; }
    #label { position: fixed; pointer-events: none; font-size: 12px; color: #fff; }
    canvas { display: block; width: 100vw; height: 100vh; }
  </style>
</head>
<body>
  <div id="bar">
    <span id="status">connecting…</span>
    <button id="pause">pause</button>
    <a href="/visualize?format=svg" style="color:#8ab4f8;margin-left:12px">svg</a>
    <a href="/visualize?format=echarts" style="color:#8ab4f8;margin-left:8px">echarts</a>
  </div>
  <div id="label"></div>
  <canvas id="view"></canvas>
  <script>
  const canvas = document.getElementById('view');
  const ctx = canvas.getContext('2d');
  const status = document.getElementById('status');
  const pauseButton = document.getElementById('pause');
  const hover = document.getElementById('label');
  let graph = null;
  let frame = null;

  function resize() {
    canvas.width = window.innerWidth * devicePixelRatio;
    canvas.height = window.innerHeight * devicePixelRatio;
    draw();
  }

  // layout coordinates are in [-1, 1] with y up
  function toCanvas(x, y) {
    const s = Math.min(canvas.width, canvas.height) / 2;
    return [canvas.width / 2 + x * s, canvas.height / 2 - y * s];
  }

  function draw() {
    ctx.fillStyle = '#111';
    ctx.fillRect(0, 0, canvas.width, canvas.height);
    if (!frame) return;

    ctx.strokeStyle = 'rgba(255,255,255,0.25)';
    ctx.lineWidth = devicePixelRatio;
    ctx.beginPath();
    const v = frame.vertices || [];
    for (let i = 0; i + 3 < v.length; i += 4) {
      const [x1, y1] = toCanvas(v[i], v[i + 1]);
      const [x2, y2] = toCanvas(v[i + 2], v[i + 3]);
      ctx.moveTo(x1, y1);
      ctx.lineTo(x2, y2);
    }
    ctx.stroke();

    ctx.fillStyle = '#8ab4f8';
    const r = 3 * devicePixelRatio;
    for (const p of frame.positions || []) {
      const [x, y] = toCanvas(p.x, p.y);
      ctx.beginPath();
      ctx.arc(x, y, r, 0, 2 * Math.PI);
      ctx.fill();
    }

    status.textContent = (graph ? graph.node_count + ' nodes, ' + graph.edges.length + ' edges, ' : '') +
      'step ' + frame.step + ', energy ' + frame.energy.toExponential(2);
  }

  canvas.addEventListener('mousemove', (e) => {
    if (!frame || !graph) return;
    const mx = e.clientX * devicePixelRatio, my = e.clientY * devicePixelRatio;
    let best = -1, bestDist = 100 * devicePixelRatio * devicePixelRatio;
    frame.positions.forEach((p, i) => {
      const [x, y] = toCanvas(p.x, p.y);
      const d = (x - mx) * (x - mx) + (y - my) * (y - my);
      if (d < bestDist) { best = i; bestDist = d; }
    });
    hover.textContent = best >= 0 ? (graph.labels[best] || String(best)) : '';
    hover.style.left = (e.clientX + 10) + 'px';
    hover.style.top = (e.clientY + 10) + 'px';
  });

  function connect() {
    const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    const ws = new WebSocket(proto + location.host + '/ws');
    pauseButton.onclick = () => ws.send(JSON.stringify({type: 'toggle'}));
    ws.onmessage = (event) => {
      const msg = JSON.parse(event.data);
      if (msg.type === 'graph') {
        graph = msg;
        pauseButton.textContent = msg.paused ? 'resume' : 'pause';
      } else if (msg.type === 'frame') {
        frame = msg;
        requestAnimationFrame(draw);
      } else if (msg.type === 'state') {
        pauseButton.textContent = msg.paused ? 'resume' : 'pause';
      }
    };
    ws.onclose = () => {
      status.textContent = 'disconnected, retrying…';
      setTimeout(connect, 1000);
    };
  }

  window.addEventListener('resize', resize);
  resize();
  connect();
  </script>
</body>
</html>
`
