package web

// Single-page dashboard: prices, balances, pools, candle closes with EMA overlay and a trade feed.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>dexsim</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root { --ink:#111111; --ink-mid:#4d4d4d; --panel:#f6f6f6; }
    * { box-sizing:border-box; }
    body { margin:0; padding:2rem; background:#fff; color:var(--ink); font-family:'Space Mono',monospace; }
    #app {
      max-width:1400px; margin:0 auto; background:var(--panel); border:3px solid var(--ink);
      padding:2rem; box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid; grid-template-columns:1fr 380px; gap:2rem;
    }
    .eyebrow { font-family:'Press Start 2P',monospace; font-size:.55rem; letter-spacing:.2em; text-transform:uppercase; }
    .card { border:3px solid var(--ink); background:#fff; padding:1.2rem; box-shadow:6px 6px 0 rgba(0,0,0,.12); margin-bottom:1.5rem; }
    .row { display:flex; gap:.6rem; flex-wrap:wrap; align-items:center; }
    .pill { font-size:.6rem; letter-spacing:.12em; text-transform:uppercase; padding:.35rem .7rem; border:2px solid var(--ink); background:#fefefe; }
    button, select, input { font-family:inherit; font-size:.7rem; border:2px solid var(--ink); background:#fff; padding:.35rem .6rem; }
    button { cursor:pointer; box-shadow:3px 3px 0 rgba(0,0,0,.15); }
    .trade { border-bottom:1px dashed #9c9c9c; padding:.5rem 0; font-size:.7rem; }
    .error { color:#d7263d; font-size:.7rem; min-height:1em; }
    @media (max-width:900px) { #app { grid-template-columns:1fr; } }
  </style>
</head>
<body>
<div id="app">
  <div>
    <div class="row" style="justify-content:space-between">
      <p class="eyebrow">dexsim</p>
      <span id="status" class="pill">Connecting…</span>
    </div>
    <div class="card">
      <div class="row">
        <select id="symbol"><option>TLSA</option><option>CRCL</option></select>
        <span id="prices" class="pill">—</span>
        <button data-post="/oracle/pause">Pause</button>
        <button data-post="/oracle/resume">Resume</button>
        <button data-post="/oracle/reset">Reset prices</button>
      </div>
      <canvas id="chart" height="300"></canvas>
    </div>
    <div class="card">
      <div class="row" id="balances"></div>
      <div class="row" id="pools" style="margin-top:.8rem"></div>
    </div>
    <div class="card">
      <div class="row">
        <input id="amount" value="100" size="8" />
        <select id="from"><option>USDA</option><option>TLSA</option><option>CRCL</option></select>
        →
        <select id="to"><option>TLSA</option><option>CRCL</option><option>USDA</option></select>
        <button id="swap">Swap</button>
        <button id="mint">Mint</button>
        <button data-post="/reset">Reset demo</button>
      </div>
      <div id="quote" class="pill" style="margin-top:.8rem">—</div>
      <div id="error" class="error"></div>
    </div>
  </div>
  <aside class="card">
    <p class="eyebrow">Trades</p>
    <div id="trades"></div>
  </aside>
</div>
<script>
const $ = (id) => document.getElementById(id);
const chart = new Chart($('chart').getContext('2d'), {
  type:'line',
  data:{ labels:[], datasets:[
    { label:'close', data:[], borderColor:'#111111', pointRadius:0, borderWidth:2 },
    { label:'ema fast', data:[], borderColor:'#1b9aaa', pointRadius:0, borderWidth:1 },
    { label:'ema slow', data:[], borderColor:'#d7263d', pointRadius:0, borderWidth:1 }
  ]},
  options:{ animation:false, responsive:true, interaction:{ intersect:false, mode:'index' } }
});

async function api(method, path, body){
  const res = await fetch(path, { method, headers:{'Content-Type':'application/json'}, body: body ? JSON.stringify(body) : undefined });
  const data = res.status === 204 ? null : await res.json();
  if(!res.ok){ throw new Error(data && data.error ? data.error : res.statusText); }
  return data;
}

async function refreshState(){
  const s = await api('GET', '/state');
  $('balances').innerHTML = Object.entries(s.balances).map(([k,v]) => '<span class="pill">'+k+' '+v+'</span>').join('');
  $('pools').innerHTML = Object.entries(s.pools).map(([k,p]) => '<span class="pill">'+k+' '+p.reserve_asset+' / '+p.reserve_stable+'</span>').join('');
  $('status').textContent = 'oracle ' + s.oracle_state;
}

async function refreshCandles(){
  const c = await api('GET', '/candles?symbol=' + $('symbol').value);
  const labels = c.candles.map((x) => new Date(x.t).toLocaleTimeString([], { hour12:false }));
  const byT = new Map(c.overlay.map((o) => [o.t, o]));
  chart.data.labels = labels;
  chart.data.datasets[0].data = c.candles.map((x) => parseFloat(x.c));
  chart.data.datasets[1].data = c.candles.map((x) => byT.has(x.t) ? parseFloat(byT.get(x.t).ema_fast) : null);
  chart.data.datasets[2].data = c.candles.map((x) => byT.has(x.t) ? parseFloat(byT.get(x.t).ema_slow) : null);
  chart.update('none');
}

async function refreshQuote(){
  const from = $('from').value, to = $('to').value, amount = $('amount').value;
  try{
    const q = await api('GET', '/quote?from='+from+'&to='+to+'&amount='+encodeURIComponent(amount));
    $('quote').textContent = 'out ' + q.amount_out + ' · fee ' + q.fee_paid + ' · impact ' + q.price_impact_pct + '%';
  }catch(err){ $('quote').textContent = err.message; }
}

async function act(fn){
  $('error').textContent = '';
  try{ await fn(); }catch(err){ $('error').textContent = err.message; }
  await refreshState(); await refreshQuote();
}

document.querySelectorAll('[data-post]').forEach((b) => b.addEventListener('click', () => act(() => api('POST', b.dataset.post))));
$('swap').addEventListener('click', () => act(() => api('POST', '/swap', { from:$('from').value, to:$('to').value, amount:$('amount').value })));
$('mint').addEventListener('click', () => act(() => api('POST', '/mint', { asset:$('to').value, amount:$('amount').value })));
['from','to','amount'].forEach((id) => $(id).addEventListener('input', refreshQuote));
$('symbol').addEventListener('change', refreshCandles);

function connectPrices(){
  const source = new EventSource('/prices/stream');
  source.addEventListener('prices', (event) => {
    const s = JSON.parse(event.data);
    $('prices').textContent = Object.entries(s.prices).map(([k,v]) => k+' '+v).join(' · ');
    refreshCandles().catch(() => {});
    refreshQuote();
  });
  source.addEventListener('error', () => { source.close(); setTimeout(connectPrices, 2000); });
}

function connectTrades(){
  const source = new EventSource('/trades/stream');
  source.addEventListener('trade', (event) => {
    const t = JSON.parse(event.data);
    const el = document.createElement('div');
    el.className = 'trade';
    el.textContent = new Date(t.ts).toLocaleTimeString([], { hour12:false }) + ' ' + t.kind + ' ' + t.amount_in + ' ' + t.from + ' → ' + t.amount_out + ' ' + t.to;
    $('trades').insertBefore(el, $('trades').firstChild);
    while($('trades').children.length > 50){ $('trades').removeChild($('trades').lastChild); }
  });
  source.addEventListener('error', () => { source.close(); setTimeout(connectTrades, 2000); });
}

refreshState(); refreshCandles(); refreshQuote();
connectPrices(); connectTrades();
</script>
</body>
</html>`
